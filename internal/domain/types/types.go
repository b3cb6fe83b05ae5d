// Package types contains the JSON shapes of the directory endpoints
package types

import "github.com/okian/co2charts/internal/domain/model"

// Country represents a country directory entry
type Country struct {
	CountryID  int64    `json:"country_id"`
	Name       string   `json:"name"`
	ISOCode    *string  `json:"iso_code"`
	SurfaceKm2 *float64 `json:"surface_km2"`
}

// Year represents a year directory entry
type Year struct {
	YearID int64 `json:"year_id"`
	Year   int   `json:"year"`
}

// Countries projects store rows into directory entries.
func Countries(rows []model.Country) []Country {
	out := make([]Country, 0, len(rows))
	for _, c := range rows {
		out = append(out, Country{CountryID: c.ID, Name: c.Name, ISOCode: c.ISOCode, SurfaceKm2: c.SurfaceKm2})
	}
	return out
}

// Years projects store rows into directory entries.
func Years(rows []model.Year) []Year {
	out := make([]Year, 0, len(rows))
	for _, y := range rows {
		out = append(out, Year{YearID: y.ID, Year: y.Year})
	}
	return out
}
