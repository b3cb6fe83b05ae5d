package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/co2charts/internal/adapters/http/api"
	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/internal/domain/forecast"
	"github.com/okian/co2charts/internal/domain/series"
	"github.com/okian/co2charts/internal/domain/types"
	"github.com/okian/co2charts/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockDependencies struct {
	payload   chart.Payload
	chartErr  error
	lastReq   chart.Request
	countries []types.Country
	years     []types.Year
	listErr   error
	pingErr   error
}

func (m *mockDependencies) GenerateChart(ctx context.Context, req chart.Request) (chart.Payload, error) {
	m.lastReq = req
	if m.chartErr != nil {
		return chart.Payload{}, m.chartErr
	}
	return m.payload, nil
}

func (m *mockDependencies) ListCountries(ctx context.Context) ([]types.Country, error) {
	return m.countries, m.listErr
}

func (m *mockDependencies) ListYears(ctx context.Context) ([]types.Year, error) {
	return m.years, m.listErr
}

func (m *mockDependencies) Ping(ctx context.Context) error {
	return m.pingErr
}

func value(v float64) *float64 { return &v }

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, api.WithCORSOrigin("*")).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{
			countries: []types.Country{{CountryID: 1, Name: "Italy"}},
			years:     []types.Year{{YearID: 1, Year: 1990}},
		}
		mux := newMux(deps)

		Convey("When calling the root", func() {
			w := do(mux, http.MethodGet, "/", "")

			Convey("Then it names the API", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"message":"CO2 Emissions API"`)
			})
		})

		Convey("When calling an unknown path", func() {
			w := do(mux, http.MethodGet, "/nope", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When listing directories at both prefixes", func() {
			for _, path := range []string{"/countries", "/api/countries"} {
				w := do(mux, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"country_id":1`)
			}
			w := do(mux, http.MethodGet, "/api/years", "")

			Convey("Then both answer with JSON arrays", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"year":1990`)
			})
		})

		Convey("When the directory lookup fails", func() {
			deps.listErr = errors.New("disk on fire")
			w := do(mux, http.MethodGet, "/countries", "")

			Convey("Then the cause is hidden", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
				So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
			})
		})

		Convey("When posting to a directory", func() {
			w := do(mux, http.MethodPost, "/years", "{}")

			Convey("Then the method is refused", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When checking health", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then a healthy store is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "healthy")
			})

			Convey("And a failing store is reported as unavailable", func() {
				deps.pingErr = errors.New("down")
				w := do(mux, http.MethodGet, "/health", "")
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When scraping metrics", func() {
			do(mux, http.MethodGet, "/countries", "")
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then the custom registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "co2_charts_http_requests_total")
			})
		})

		Convey("When a preflight request arrives", func() {
			w := do(mux, http.MethodOptions, "/api/chart", "")

			Convey("Then CORS headers are returned without a body", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})

		Convey("When a request carries no id", func() {
			w := do(mux, http.MethodGet, "/years", "")

			Convey("Then one is generated", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})
	})
}

func TestChartHandler(t *testing.T) {
	Convey("Given a chart endpoint", t, func() {
		deps := &mockDependencies{
			payload: chart.Payload{
				Countries: []string{"Italy"},
				Years:     []int{1990, 1991},
				Series: []chart.SeriesDescriptor{
					{Name: "Italy", Type: "line", Smooth: true, Data: []*float64{value(1.5), nil}},
				},
			},
		}
		mux := newMux(deps)

		Convey("When posting a valid request", func() {
			w := do(mux, http.MethodPost, "/api/chart", `{"country_ids":[1],"year_start":1990,"year_end":1991}`)

			Convey("Then the payload is returned with nulls for gaps", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"data":[1.5,null]`)
				So(w.Body.String(), ShouldContainSubstring, `"smooth":true`)
			})

			Convey("And the flags default to false", func() {
				So(deps.lastReq.CountryIDs, ShouldResemble, []int64{1})
				So(deps.lastReq.AI, ShouldBeFalse)
				So(deps.lastReq.ShowDensity, ShouldBeFalse)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/chart", `{not json`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the body is empty", func() {
			w := do(mux, http.MethodPost, "/chart", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using GET", func() {
			w := do(mux, http.MethodGet, "/chart", "")

			Convey("Then the method is refused", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When the pipeline rejects the request", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{&chart.ValidationError{Reason: "forecast is only available for a single country"}, http.StatusBadRequest, "validation_error"},
				{&series.NoDataError{Selection: "countries [999] in 1990-2020"}, http.StatusUnprocessableEntity, "no_data"},
				{&series.MissingAreaError{CountryID: 2, Country: "France"}, http.StatusUnprocessableEntity, "missing_surface_area"},
				{&forecast.FailureError{Country: "Italy", Err: errors.New("singular")}, http.StatusInternalServerError, "internal_error"},
			}

			Convey("Then each class maps to its status and code", func() {
				for _, c := range cases {
					deps.chartErr = c.err
					w := do(mux, http.MethodPost, "/chart", `{"country_ids":[1],"year_start":1990,"year_end":2020}`)
					So(w.Code, ShouldEqual, c.status)
					So(decodeError(w)["code"], ShouldEqual, c.code)
				}
			})

			Convey("And user-facing messages name the problem", func() {
				deps.chartErr = &series.NoDataError{Selection: "countries [999] in 1990-2020"}
				w := do(mux, http.MethodPost, "/chart", `{"country_ids":[999],"year_start":1990,"year_end":2020}`)
				So(decodeError(w)["message"], ShouldContainSubstring, "[999]")
				So(w.Body.String(), ShouldNotContainSubstring, `"series"`)
			})

			Convey("And internal causes are not echoed", func() {
				deps.chartErr = &forecast.FailureError{Country: "Italy", Err: errors.New("singular")}
				w := do(mux, http.MethodPost, "/chart", `{"country_ids":[1],"year_start":1990,"year_end":2020,"ai":true}`)
				So(w.Body.String(), ShouldNotContainSubstring, "singular")
			})
		})
	})
}

func TestExportHandler(t *testing.T) {
	Convey("Given an export endpoint", t, func() {
		deps := &mockDependencies{
			payload: chart.Payload{
				Countries: []string{"Italy"},
				Years:     []int{1990, 1991, 1992},
				Series: []chart.SeriesDescriptor{
					{Name: "Italy", Type: "line", Smooth: true, Data: []*float64{value(1), value(2), value(3)}},
				},
			},
		}
		mux := newMux(deps)
		body := `{"country_ids":[1],"year_start":1990,"year_end":1992}`

		Convey("When exporting as PNG", func() {
			w := do(mux, http.MethodPost, "/api/chart/export?format=png", body)

			Convey("Then an image is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), ShouldBeTrue)
			})
		})

		Convey("When exporting as XLSX", func() {
			w := do(mux, http.MethodPost, "/api/chart/export?format=xlsx", body)

			Convey("Then a workbook is returned as an attachment", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "co2-chart.xlsx")
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), ShouldBeTrue)
			})
		})

		Convey("When the format is unknown", func() {
			w := do(mux, http.MethodPost, "/api/chart/export?format=pdf", body)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the pipeline fails", func() {
			deps.chartErr = &series.NoDataError{Selection: "countries [1] in 1990-1992"}
			w := do(mux, http.MethodPost, "/api/chart/export", body)

			Convey("Then the same error mapping applies", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes both unwrap", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap tags the operation", func() {
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrMethodNotAllowed).Error(), ShouldEqual, "api.op: method not allowed")
		})
	})
}
