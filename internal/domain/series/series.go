// Package series turns flat emission records into year-aligned series.
//
// A value of nil is the absence marker: the country has no observation for
// that year. It is never replaced by zero.
package series

import (
	"sort"

	"github.com/okian/co2charts/internal/domain/model"
)

// Criteria selects countries and an inclusive year range.
type Criteria struct {
	CountryIDs []int64
	YearStart  int
	YearEnd    int
}

// Bounds returns the range with start and end ordered.
func (c Criteria) Bounds() (lo, hi int) {
	if c.YearStart <= c.YearEnd {
		return c.YearStart, c.YearEnd
	}
	return c.YearEnd, c.YearStart
}

// Contains reports whether year falls in the inclusive range.
func (c Criteria) Contains(year int) bool {
	lo, hi := c.Bounds()
	return year >= lo && year <= hi
}

// Point is one (year, value-or-absent) pair.
type Point struct {
	Year  int
	Value *float64
}

// Series is the ordered sequence of points for one country.
type Series struct {
	CountryID int64
	Name      string
	Points    []Point
}

// Values returns the point values in axis order.
func (s Series) Values() []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Result is a set of series sharing one year axis.
type Result struct {
	Years  []int
	Series []Series
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// Filter keeps the records inside the criteria's year range that belong
// to one of the requested countries.
func Filter(records []model.Record, c Criteria) []model.Record {
	wanted := make(map[int64]struct{}, len(c.CountryIDs))
	for _, id := range c.CountryIDs {
		wanted[id] = struct{}{}
	}
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if _, ok := wanted[r.CountryID]; !ok {
			continue
		}
		if c.Contains(r.Year) {
			out = append(out, r)
		}
	}
	return out
}

// Build aligns records on the shared axis: the sorted distinct years
// present in the filtered set. Series follow the order of c.CountryIDs and
// countries without in-range records are left out. An empty filtered set
// yields a *NoDataError.
func Build(records []model.Record, c Criteria) (Result, error) {
	filtered := Filter(records, c)
	if len(filtered) == 0 {
		return Result{}, NewNoDataError(c)
	}

	axis := yearAxis(filtered)

	type countryRows struct {
		name   string
		values map[int]*float64
	}
	byCountry := make(map[int64]*countryRows)
	for _, r := range filtered {
		rows, ok := byCountry[r.CountryID]
		if !ok {
			rows = &countryRows{name: r.CountryName, values: make(map[int]*float64)}
			byCountry[r.CountryID] = rows
		}
		rows.values[r.Year] = r.CO2
	}

	res := Result{Years: axis, Series: make([]Series, 0, len(byCountry))}
	seen := make(map[int64]bool, len(c.CountryIDs))
	for _, id := range c.CountryIDs {
		rows, ok := byCountry[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		points := make([]Point, len(axis))
		for i, year := range axis {
			points[i] = Point{Year: year, Value: rows.values[year]}
		}
		res.Series = append(res.Series, Series{CountryID: id, Name: rows.name, Points: points})
	}
	return res, nil
}

// Normalize divides every value by its country's surface area. A country
// with a missing or non-positive area fails the whole call with a
// *MissingAreaError; absent values stay absent.
func Normalize(records []model.Record) ([]model.Record, error) {
	out := make([]model.Record, len(records))
	for i, r := range records {
		if r.SurfaceKm2 == nil || *r.SurfaceKm2 <= 0 {
			return nil, &MissingAreaError{CountryID: r.CountryID, Country: r.CountryName}
		}
		out[i] = r
		if r.CO2 != nil {
			out[i].CO2 = Float(*r.CO2 / *r.SurfaceKm2)
		}
	}
	return out, nil
}

// Observed returns the full history of one country as an ordered series,
// ignoring any year range. Years without a value are left out.
func Observed(records []model.Record, countryID int64) Series {
	s := Series{CountryID: countryID}
	for _, r := range records {
		if r.CountryID != countryID {
			continue
		}
		if s.Name == "" {
			s.Name = r.CountryName
		}
		if r.CO2 == nil {
			continue
		}
		s.Points = append(s.Points, Point{Year: r.Year, Value: r.CO2})
	}
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Year < s.Points[j].Year })
	return s
}

// Merge combines observed and predicted points over the union of their
// years. An observed value always wins; a predicted value fills the year
// only when no observation exists; otherwise the year stays absent.
func Merge(observed, predicted []Point) []Point {
	obs := make(map[int]*float64, len(observed))
	pred := make(map[int]*float64, len(predicted))
	years := make(map[int]struct{}, len(observed)+len(predicted))
	for _, p := range observed {
		if p.Value != nil || obs[p.Year] == nil {
			obs[p.Year] = p.Value
		}
		years[p.Year] = struct{}{}
	}
	for _, p := range predicted {
		if p.Value != nil || pred[p.Year] == nil {
			pred[p.Year] = p.Value
		}
		years[p.Year] = struct{}{}
	}

	axis := make([]int, 0, len(years))
	for y := range years {
		axis = append(axis, y)
	}
	sort.Ints(axis)

	merged := make([]Point, len(axis))
	for i, y := range axis {
		v := obs[y]
		if v == nil {
			v = pred[y]
		}
		merged[i] = Point{Year: y, Value: v}
	}
	return merged
}

func yearAxis(records []model.Record) []int {
	set := make(map[int]struct{}, len(records))
	for _, r := range records {
		set[r.Year] = struct{}{}
	}
	axis := make([]int, 0, len(set))
	for y := range set {
		axis = append(axis, y)
	}
	sort.Ints(axis)
	return axis
}
