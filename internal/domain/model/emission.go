// Package model contains domain models passed between layers.
package model

// Country is a row of the country directory. SurfaceKm2 is only required
// when a chart asks for density normalization.
type Country struct {
	ID         int64
	Name       string
	ISOCode    *string
	SurfaceKm2 *float64
}

// Year is a row of the calendar-year directory.
type Year struct {
	ID   int64
	Year int
}

// Emission is one observation for a (country, year) pair. At most one
// Emission exists per pair.
type Emission struct {
	ID         int64
	CountryID  int64
	YearID     int64
	CO2        *float64 // nil when the source has no figure for the year
	CO2PerKm2  *float64
	Population *int64
}

// Record is an emission joined with the country and year attributes the
// chart pipeline needs. Stores return these flat rows instead of linked
// entities.
type Record struct {
	CountryID   int64
	CountryName string
	Year        int
	CO2         *float64
	SurfaceKm2  *float64
}
