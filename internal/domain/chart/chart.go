// Package chart validates chart requests and assembles chart payloads.
package chart

import (
	"fmt"

	"github.com/okian/co2charts/internal/domain/series"
)

// Mode selects the pipeline path for a request.
type Mode string

// Request modes.
const (
	ModeComparison Mode = "comparison"
	ModeDensity    Mode = "density"
	ModeForecast   Mode = "forecast"
)

const (
	seriesType       = "line"
	forecastSuffix   = " (observed + predicted)"
	maxForecastCount = 1
)

// Request is the chart operation input.
type Request struct {
	CountryIDs  []int64 `json:"country_ids"`
	YearStart   int     `json:"year_start"`
	YearEnd     int     `json:"year_end"`
	AI          bool    `json:"ai"`
	ShowDensity bool    `json:"show_density"`
}

// Validate checks the preconditions that need no data access.
func (r Request) Validate() error {
	if len(r.CountryIDs) == 0 {
		return &ValidationError{Reason: "at least one country must be selected"}
	}
	if r.AI && len(r.CountryIDs) > maxForecastCount {
		return &ValidationError{Reason: "forecast is only available for a single country"}
	}
	return nil
}

// CheckForecastWindow rejects a forecast whose range does not end at the
// latest observed year.
func (r Request) CheckForecastWindow(latest int) error {
	if r.YearEnd != latest {
		return &ValidationError{Reason: fmt.Sprintf("forecast requires year_end to be the latest available year (%d)", latest)}
	}
	return nil
}

// Criteria returns the series selection for the request.
func (r Request) Criteria() series.Criteria {
	return series.Criteria{CountryIDs: r.CountryIDs, YearStart: r.YearStart, YearEnd: r.YearEnd}
}

// Mode reports which path the request takes. Forecast wins over density.
func (r Request) Mode() Mode {
	switch {
	case r.AI:
		return ModeForecast
	case r.ShowDensity:
		return ModeDensity
	default:
		return ModeComparison
	}
}

// SeriesDescriptor is one named line aligned to Payload.Years.
type SeriesDescriptor struct {
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Smooth bool       `json:"smooth"`
	Data   []*float64 `json:"data"`
}

// Payload is the chart operation output.
type Payload struct {
	Countries []string           `json:"countries"`
	Years     []int              `json:"years"`
	Series    []SeriesDescriptor `json:"series"`
}

// Assemble packages a comparison result.
func Assemble(res series.Result) Payload {
	p := Payload{
		Countries: make([]string, 0, len(res.Series)),
		Years:     append(make([]int, 0, len(res.Years)), res.Years...),
		Series:    make([]SeriesDescriptor, 0, len(res.Series)),
	}
	for _, s := range res.Series {
		p.Countries = append(p.Countries, s.Name)
		p.Series = append(p.Series, SeriesDescriptor{
			Name:   s.Name,
			Type:   seriesType,
			Smooth: true,
			Data:   s.Values(),
		})
	}
	return p
}

// AssembleForecast packages the merged series of one country. The merged
// years become the axis.
func AssembleForecast(name string, merged []series.Point) Payload {
	years := make([]int, len(merged))
	data := make([]*float64, len(merged))
	for i, pt := range merged {
		years[i] = pt.Year
		data[i] = pt.Value
	}
	return Payload{
		Countries: []string{name},
		Years:     years,
		Series: []SeriesDescriptor{{
			Name:   name + forecastSuffix,
			Type:   seriesType,
			Smooth: true,
			Data:   data,
		}},
	}
}
