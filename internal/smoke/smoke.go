// Package smoke exercises a running chart API and verifies the payload
// alignment rules end to end.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/co2charts/pkg/logger"
)

// ErrChecksFailed is returned by Run when at least one check fails.
var ErrChecksFailed = errors.New("smoke checks failed")

// Default configuration constants.
const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxCountries = 3
)

// Config holds the smoke run configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxCountries caps how many countries the comparison check selects.
	MaxCountries int
	// Client overrides the HTTP client, e.g. in tests.
	Client *http.Client
	Logger logger.Logger
}

// Check is the outcome of one probe.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report collects every check of a run.
type Report struct {
	Checks []Check
}

// Failed returns the failed checks.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) pass(name, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, OK: true, Detail: detail})
}

func (r *Report) fail(name string, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, Detail: fmt.Sprintf(format, args...)})
}

type country struct {
	CountryID int64  `json:"country_id"`
	Name      string `json:"name"`
}

type year struct {
	YearID int64 `json:"year_id"`
	Year   int   `json:"year"`
}

type chartRequest struct {
	CountryIDs  []int64 `json:"country_ids"`
	YearStart   int     `json:"year_start"`
	YearEnd     int     `json:"year_end"`
	AI          bool    `json:"ai"`
	ShowDensity bool    `json:"show_density"`
}

type chartPayload struct {
	Countries []string `json:"countries"`
	Years     []int    `json:"years"`
	Series    []struct {
		Name string     `json:"name"`
		Data []*float64 `json:"data"`
	} `json:"series"`
}

// Run probes the API at cfg.BaseURL. It returns the report and
// ErrChecksFailed when any check fails; transport errors are recorded as
// failed checks.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxCountries <= 0 {
		cfg.MaxCountries = DefaultMaxCountries
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get().Named("smoke")
	}
	client := newHTTPClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, cfg.Client)

	var report Report
	checkRoot(ctx, client, &report)
	checkHealth(ctx, client, &report)
	countries := checkCountries(ctx, client, &report)
	years := checkYears(ctx, client, &report)

	if len(countries) > 0 && len(years) > 0 {
		ids := make([]int64, 0, cfg.MaxCountries)
		for _, c := range countries {
			if len(ids) == cfg.MaxCountries {
				break
			}
			ids = append(ids, c.CountryID)
		}
		first, last := years[0].Year, years[len(years)-1].Year
		checkComparison(ctx, client, &report, ids, first, last)
		checkValidation(ctx, client, &report, first, last)
		checkForecast(ctx, client, &report, ids[0], first, last)
	}

	for _, c := range report.Checks {
		if c.OK {
			cfg.Logger.Info(ctx, "check passed", logger.String("check", c.Name), logger.String("detail", c.Detail))
		} else {
			cfg.Logger.Error(ctx, "check failed", logger.String("check", c.Name), logger.String("detail", c.Detail))
		}
	}
	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrChecksFailed, len(failed), len(report.Checks))
	}
	return report, nil
}

func checkRoot(ctx context.Context, c *httpClient, r *Report) {
	var body struct {
		Message string `json:"message"`
	}
	status, err := c.get(ctx, "/", &body)
	switch {
	case err != nil:
		r.fail("root", "%v", err)
	case status != http.StatusOK || body.Message == "":
		r.fail("root", "status %d, message %q", status, body.Message)
	default:
		r.pass("root", body.Message)
	}
}

func checkHealth(ctx context.Context, c *httpClient, r *Report) {
	status, err := c.get(ctx, "/health", nil)
	switch {
	case err != nil:
		r.fail("health", "%v", err)
	case status != http.StatusOK:
		r.fail("health", "status %d", status)
	default:
		r.pass("health", "healthy")
	}
}

func checkCountries(ctx context.Context, c *httpClient, r *Report) []country {
	var out []country
	status, err := c.get(ctx, "/api/countries", &out)
	switch {
	case err != nil:
		r.fail("countries", "%v", err)
		return nil
	case status != http.StatusOK:
		r.fail("countries", "status %d", status)
		return nil
	case len(out) == 0:
		r.fail("countries", "directory is empty")
		return nil
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Name > out[i].Name {
			r.fail("countries", "not ordered by name at %q", out[i].Name)
			return out
		}
	}
	r.pass("countries", fmt.Sprintf("%d countries", len(out)))
	return out
}

func checkYears(ctx context.Context, c *httpClient, r *Report) []year {
	var out []year
	status, err := c.get(ctx, "/api/years", &out)
	switch {
	case err != nil:
		r.fail("years", "%v", err)
		return nil
	case status != http.StatusOK:
		r.fail("years", "status %d", status)
		return nil
	case len(out) == 0:
		r.fail("years", "directory is empty")
		return nil
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Year >= out[i].Year {
			r.fail("years", "not strictly ascending at %d", out[i].Year)
			return out
		}
	}
	r.pass("years", fmt.Sprintf("%d-%d", out[0].Year, out[len(out)-1].Year))
	return out
}

func checkComparison(ctx context.Context, c *httpClient, r *Report, ids []int64, first, last int) {
	var p chartPayload
	status, err := c.post(ctx, "/api/chart", chartRequest{CountryIDs: ids, YearStart: first, YearEnd: last}, &p)
	switch {
	case err != nil:
		r.fail("comparison", "%v", err)
		return
	case status == http.StatusUnprocessableEntity:
		r.pass("comparison", "no data for the selection")
		return
	case status != http.StatusOK:
		r.fail("comparison", "status %d", status)
		return
	}
	if msg := alignment(p); msg != "" {
		r.fail("comparison", "%s", msg)
		return
	}
	for _, y := range p.Years {
		if y < first || y > last {
			r.fail("comparison", "year %d outside %d-%d", y, first, last)
			return
		}
	}
	r.pass("comparison", fmt.Sprintf("%d series over %d years", len(p.Series), len(p.Years)))
}

func checkValidation(ctx context.Context, c *httpClient, r *Report, first, last int) {
	status, err := c.post(ctx, "/api/chart", chartRequest{YearStart: first, YearEnd: last}, nil)
	switch {
	case err != nil:
		r.fail("validation", "%v", err)
	case status != http.StatusBadRequest:
		r.fail("validation", "empty selection answered %d", status)
	default:
		r.pass("validation", "empty selection rejected")
	}
}

func checkForecast(ctx context.Context, c *httpClient, r *Report, id int64, first, last int) {
	var p chartPayload
	status, err := c.post(ctx, "/api/chart", chartRequest{CountryIDs: []int64{id}, YearStart: first, YearEnd: last, AI: true}, &p)
	switch {
	case err != nil:
		r.fail("forecast", "%v", err)
		return
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		r.pass("forecast", fmt.Sprintf("not available for country %d (status %d)", id, status))
		return
	case status != http.StatusOK:
		r.fail("forecast", "status %d", status)
		return
	}
	if msg := alignment(p); msg != "" {
		r.fail("forecast", "%s", msg)
		return
	}
	if len(p.Series) != 1 {
		r.fail("forecast", "expected one series, got %d", len(p.Series))
		return
	}
	r.pass("forecast", fmt.Sprintf("%s through %d", p.Series[0].Name, p.Years[len(p.Years)-1]))
}

// alignment returns a description of the first broken payload rule, or "".
func alignment(p chartPayload) string {
	if len(p.Countries) != len(p.Series) {
		return fmt.Sprintf("%d countries but %d series", len(p.Countries), len(p.Series))
	}
	for i := 1; i < len(p.Years); i++ {
		if p.Years[i-1] >= p.Years[i] {
			return fmt.Sprintf("years not strictly ascending at %d", p.Years[i])
		}
	}
	for _, s := range p.Series {
		if len(s.Data) != len(p.Years) {
			return fmt.Sprintf("series %q has %d points for %d years", s.Name, len(s.Data), len(p.Years))
		}
	}
	return ""
}
