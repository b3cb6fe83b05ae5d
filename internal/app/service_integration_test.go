package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	repository "github.com/okian/co2charts/internal/adapters/repository"
	service "github.com/okian/co2charts/internal/app"
	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/internal/domain/forecast"
	"github.com/okian/co2charts/internal/domain/model"
	"github.com/okian/co2charts/internal/domain/series"
	. "github.com/smartystreets/goconvey/convey"
)

const predictedValue = 999.0

// flatModel predicts a constant from the first fitted year to horizon
// years past the last one.
type flatModel struct{}

func (flatModel) Fit(obs []forecast.Observation, cutoff int) (forecast.Predictor, error) {
	first, last := obs[0].Year, obs[len(obs)-1].Year
	return flatPredictor{first: first, last: last}, nil
}

type flatPredictor struct{ first, last int }

func (p flatPredictor) Predict(horizon int) (forecast.Prediction, error) {
	var pred forecast.Prediction
	for y := p.first; y <= p.last+horizon; y++ {
		pred.Years = append(pred.Years, y)
		pred.Values = append(pred.Values, predictedValue)
	}
	return pred, nil
}

type failingModel struct{}

func (failingModel) Fit([]forecast.Observation, int) (forecast.Predictor, error) {
	return nil, errors.New("singular design")
}

type fixture struct {
	italy, france, atlantis int64
}

// seedStore writes Italy 1985-2023 with a gap in 2000, France 1990-2020
// without a surface area, and Atlantis with no emissions.
func seedStore(t *testing.T, store *repository.SQLStore) fixture {
	ctx := context.Background()
	area := 302073.0
	var fx fixture
	var err error
	if fx.italy, err = store.UpsertCountry(ctx, model.Country{Name: "Italy", SurfaceKm2: &area}); err != nil {
		t.Fatal(err)
	}
	if fx.france, err = store.UpsertCountry(ctx, model.Country{Name: "France"}); err != nil {
		t.Fatal(err)
	}
	if fx.atlantis, err = store.UpsertCountry(ctx, model.Country{Name: "Atlantis"}); err != nil {
		t.Fatal(err)
	}
	put := func(country int64, year int, v *float64) {
		yid, err := store.UpsertYear(ctx, year)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.UpsertEmission(ctx, model.Emission{CountryID: country, YearID: yid, CO2: v}); err != nil {
			t.Fatal(err)
		}
	}
	for y := 1985; y <= 2023; y++ {
		if y == 2000 {
			put(fx.italy, y, nil)
			continue
		}
		put(fx.italy, y, series.Float(italyValue(y)))
	}
	for y := 1990; y <= 2020; y++ {
		put(fx.france, y, series.Float(float64(y-1900)))
	}
	return fx
}

func italyValue(year int) float64 { return 100 + float64(year-1985) }

func newSeededService(t *testing.T, opts ...service.Option) (*service.Service, fixture) {
	ctx := context.Background()
	store, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "co2.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	fx := seedStore(t, store)
	svc := service.New(append([]service.Option{service.WithStore(store)}, opts...)...)
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc, fx
}

func assertAligned(p chart.Payload) {
	So(p.Series, ShouldHaveLength, len(p.Countries))
	for _, s := range p.Series {
		So(s.Data, ShouldHaveLength, len(p.Years))
	}
}

func TestGenerateChart_Comparison(t *testing.T) {
	Convey("Given a seeded service", t, func() {
		svc, fx := newSeededService(t, service.WithForecastModel(flatModel{}))
		ctx := context.Background()

		Convey("When charting one country over 1990-2020", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 2020})

			Convey("Then the axis covers every observed year in range", func() {
				So(err, ShouldBeNil)
				So(p.Years, ShouldHaveLength, 31)
				So(p.Years[0], ShouldEqual, 1990)
				So(p.Years[30], ShouldEqual, 2020)
				So(p.Countries, ShouldResemble, []string{"Italy"})
				So(p.Series[0].Name, ShouldEqual, "Italy")
				assertAligned(p)
			})

			Convey("And the gap year is absent", func() {
				So(p.Series[0].Data[10], ShouldBeNil)
				So(*p.Series[0].Data[0], ShouldEqual, italyValue(1990))
			})
		})

		Convey("When charting two countries with different coverage", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.france, fx.italy}, YearStart: 2025, YearEnd: 1980})

			Convey("Then both series share the union axis", func() {
				So(err, ShouldBeNil)
				So(p.Countries, ShouldResemble, []string{"France", "Italy"})
				So(p.Years[0], ShouldEqual, 1985)
				So(p.Years[len(p.Years)-1], ShouldEqual, 2023)
				So(p.Series[0].Data[0], ShouldBeNil)
				assertAligned(p)
				for _, y := range p.Years {
					So(y, ShouldBeBetweenOrEqual, 1980, 2025)
				}
			})
		})

		Convey("When a selected country has no records in range", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy, fx.atlantis}, YearStart: 2010, YearEnd: 2011})

			Convey("Then it is omitted", func() {
				So(err, ShouldBeNil)
				So(p.Countries, ShouldResemble, []string{"Italy"})
			})
		})

		Convey("When the same request is issued twice", func() {
			req := chart.Request{CountryIDs: []int64{fx.italy, fx.france}, YearStart: 1990, YearEnd: 2020}
			first, err1 := svc.GenerateChart(ctx, req)
			second, err2 := svc.GenerateChart(ctx, req)

			Convey("Then the payloads are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When the country does not exist", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{999}, YearStart: 1990, YearEnd: 2020})

			Convey("Then it is a data availability error with no payload", func() {
				So(errors.Is(err, series.ErrNoData), ShouldBeTrue)
				So(p.Series, ShouldBeNil)
			})
		})
	})
}

func TestGenerateChart_Density(t *testing.T) {
	Convey("Given a seeded service", t, func() {
		svc, fx := newSeededService(t)
		ctx := context.Background()

		Convey("When density is requested for a country with an area", func() {
			raw, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 1995})
			So(err, ShouldBeNil)
			dense, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 1995, ShowDensity: true})

			Convey("Then each value is divided by the surface area", func() {
				So(err, ShouldBeNil)
				So(dense.Years, ShouldResemble, raw.Years)
				for i, v := range dense.Series[0].Data {
					So(*v, ShouldEqual, *raw.Series[0].Data[i]/302073.0)
				}
			})
		})

		Convey("When density is requested for a country without an area", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy, fx.france}, YearStart: 1990, YearEnd: 2000, ShowDensity: true})

			Convey("Then the whole request is rejected", func() {
				var missing *series.MissingAreaError
				So(errors.As(err, &missing), ShouldBeTrue)
				So(missing.Country, ShouldEqual, "France")
				So(p.Series, ShouldBeNil)
			})
		})
	})
}

func TestGenerateChart_Forecast(t *testing.T) {
	Convey("Given a seeded service with a constant model", t, func() {
		svc, fx := newSeededService(t, service.WithForecastModel(flatModel{}))
		ctx := context.Background()

		Convey("When a forecast is requested for two countries", func() {
			_, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy, fx.france}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then it is a validation error", func() {
				So(errors.Is(err, chart.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the range does not end at the latest year", func() {
			_, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 2020, AI: true})

			Convey("Then it is a validation error", func() {
				So(errors.Is(err, chart.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "2023")
			})
		})

		Convey("When a forecast is requested at the latest year", func() {
			p, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then a single merged series is returned", func() {
				So(err, ShouldBeNil)
				So(p.Countries, ShouldResemble, []string{"Italy"})
				So(p.Series, ShouldHaveLength, 1)
				So(p.Series[0].Name, ShouldEqual, "Italy (observed + predicted)")
				assertAligned(p)
			})

			Convey("And the last 36 years come from the model", func() {
				n := len(p.Years)
				So(p.Years[n-1], ShouldEqual, 2023+36)
				for i := n - 36; i < n; i++ {
					So(p.Years[i], ShouldBeGreaterThan, 2023)
					So(*p.Series[0].Data[i], ShouldEqual, predictedValue)
				}
			})

			Convey("And earlier years keep the stored observations", func() {
				for i, y := range p.Years {
					if y > 2023 {
						break
					}
					if y == 2000 {
						So(*p.Series[0].Data[i], ShouldEqual, predictedValue)
						continue
					}
					So(*p.Series[0].Data[i], ShouldEqual, italyValue(y))
				}
				So(p.Years[0], ShouldEqual, 1985)
			})
		})

		Convey("When the country has no observations", func() {
			_, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{fx.atlantis}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then it is a data availability error naming the country", func() {
				So(errors.Is(err, series.ErrNoData), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Atlantis")
			})
		})

		Convey("When the country does not exist", func() {
			_, err := svc.GenerateChart(ctx, chart.Request{CountryIDs: []int64{999}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then the error falls back to the id", func() {
				So(errors.Is(err, series.ErrNoData), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "country 999")
			})
		})
	})

	Convey("Given a seeded service whose model fails", t, func() {
		svc, fx := newSeededService(t, service.WithForecastModel(failingModel{}))

		Convey("When a forecast is requested", func() {
			_, err := svc.GenerateChart(context.Background(), chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then the failure is surfaced as a forecast error", func() {
				So(errors.Is(err, forecast.ErrForecastFailed), ShouldBeTrue)
			})
		})
	})

	Convey("Given a seeded service with the trend model", t, func() {
		svc, fx := newSeededService(t, service.WithForecastHorizon(5))

		Convey("When a forecast is requested", func() {
			p, err := svc.GenerateChart(context.Background(), chart.Request{CountryIDs: []int64{fx.italy}, YearStart: 1990, YearEnd: 2023, AI: true})

			Convey("Then the axis extends by the horizon and follows the trend", func() {
				So(err, ShouldBeNil)
				n := len(p.Years)
				So(p.Years[n-1], ShouldEqual, 2028)
				So(*p.Series[0].Data[n-1], ShouldAlmostEqual, italyValue(2028), 0.5)
				So(*p.Series[0].Data[0], ShouldEqual, italyValue(1985))
			})
		})
	})
}

func TestDirectories(t *testing.T) {
	Convey("Given a seeded service", t, func() {
		svc, _ := newSeededService(t)
		ctx := context.Background()

		Convey("When listing countries and years", func() {
			countries, err1 := svc.ListCountries(ctx)
			years, err2 := svc.ListYears(ctx)

			Convey("Then both directories are ordered", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(countries, ShouldHaveLength, 3)
				So(countries[0].Name, ShouldEqual, "Atlantis")
				So(years[0].Year, ShouldEqual, 1985)
				So(years[len(years)-1].Year, ShouldEqual, 2023)
			})
		})
	})
}
