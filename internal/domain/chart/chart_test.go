package chart_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/internal/domain/series"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRequestValidation(t *testing.T) {
	Convey("Given chart requests", t, func() {
		Convey("When no country is selected", func() {
			err := chart.Request{YearStart: 1990, YearEnd: 2020}.Validate()

			Convey("Then it is a validation error", func() {
				var verr *chart.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(errors.Is(err, chart.ErrValidation), ShouldBeTrue)
				So(verr.Reason, ShouldContainSubstring, "country")
			})
		})

		Convey("When a forecast is requested for two countries", func() {
			err := chart.Request{CountryIDs: []int64{1, 2}, AI: true}.Validate()

			Convey("Then it is rejected", func() {
				So(errors.Is(err, chart.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "single country")
			})
		})

		Convey("When a comparison is requested for two countries", func() {
			err := chart.Request{CountryIDs: []int64{1, 2}}.Validate()

			Convey("Then it passes", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the forecast window does not end at the latest year", func() {
			req := chart.Request{CountryIDs: []int64{1}, YearStart: 1990, YearEnd: 2020, AI: true}

			Convey("Then only the latest year is accepted", func() {
				So(errors.Is(req.CheckForecastWindow(2023), chart.ErrValidation), ShouldBeTrue)
				So(req.CheckForecastWindow(2020), ShouldBeNil)
			})
		})

		Convey("When reading the mode", func() {
			Convey("Then forecast wins over density", func() {
				So(chart.Request{AI: true, ShowDensity: true}.Mode(), ShouldEqual, chart.ModeForecast)
				So(chart.Request{ShowDensity: true}.Mode(), ShouldEqual, chart.ModeDensity)
				So(chart.Request{}.Mode(), ShouldEqual, chart.ModeComparison)
			})
		})

		Convey("When decoding a body without optional flags", func() {
			var req chart.Request
			err := json.Unmarshal([]byte(`{"country_ids":[3],"year_start":2000,"year_end":2010}`), &req)

			Convey("Then the flags default to false", func() {
				So(err, ShouldBeNil)
				So(req.AI, ShouldBeFalse)
				So(req.ShowDensity, ShouldBeFalse)
				So(req.Criteria().CountryIDs, ShouldResemble, []int64{3})
			})
		})
	})
}

func TestAssemble(t *testing.T) {
	Convey("Given a built comparison result", t, func() {
		res := series.Result{
			Years: []int{2000, 2001},
			Series: []series.Series{
				{CountryID: 1, Name: "Italy", Points: []series.Point{{Year: 2000, Value: series.Float(1)}, {Year: 2001}}},
				{CountryID: 2, Name: "France", Points: []series.Point{{Year: 2000}, {Year: 2001, Value: series.Float(0)}}},
			},
		}

		Convey("When assembling", func() {
			p := chart.Assemble(res)

			Convey("Then labels, axis and series line up", func() {
				So(p.Countries, ShouldResemble, []string{"Italy", "France"})
				So(p.Years, ShouldResemble, []int{2000, 2001})
				So(p.Series, ShouldHaveLength, len(p.Countries))
				for _, s := range p.Series {
					So(s.Data, ShouldHaveLength, len(p.Years))
					So(s.Type, ShouldEqual, "line")
					So(s.Smooth, ShouldBeTrue)
				}
			})

			Convey("And absence is null while zero stays zero", func() {
				raw, err := json.Marshal(p)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"data":[1,null]`)
				So(string(raw), ShouldContainSubstring, `"data":[null,0]`)
			})
		})

		Convey("When assembling an empty result", func() {
			raw, err := json.Marshal(chart.Assemble(series.Result{}))

			Convey("Then lists are empty rather than null", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"countries":[],"years":[],"series":[]}`)
			})
		})
	})
}

func TestAssembleForecast(t *testing.T) {
	Convey("Given a merged series", t, func() {
		merged := []series.Point{
			{Year: 2022, Value: series.Float(10)},
			{Year: 2023, Value: series.Float(11)},
			{Year: 2024, Value: series.Float(12.5)},
		}

		Convey("When assembling the forecast payload", func() {
			p := chart.AssembleForecast("Italy", merged)

			Convey("Then the merged years are the axis", func() {
				So(p.Years, ShouldResemble, []int{2022, 2023, 2024})
				So(p.Countries, ShouldResemble, []string{"Italy"})
			})

			Convey("And the series name carries the qualifier", func() {
				So(p.Series, ShouldHaveLength, 1)
				So(p.Series[0].Name, ShouldEqual, "Italy (observed + predicted)")
				So(*p.Series[0].Data[2], ShouldEqual, 12.5)
			})
		})
	})
}
