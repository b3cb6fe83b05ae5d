// Package repository provides read access to emission records joined with
// their country and year attributes, plus the write path used by ingestion.
package repository

import (
	"context"

	"github.com/okian/co2charts/internal/domain/model"
)

// Counts holds the row count of each table.
type Counts struct {
	Countries int64
	Years     int64
	Emissions int64
}

// Store provides read access to the emission data.
type Store interface {
	// Countries returns the country directory ordered by name.
	Countries(ctx context.Context) ([]model.Country, error)
	// Years returns the year directory in ascending order.
	Years(ctx context.Context) ([]model.Year, error)
	// Country returns one country or ErrNotFound.
	Country(ctx context.Context, id int64) (model.Country, error)
	// Records returns every emission of the given countries as flat rows,
	// ordered by country and year.
	Records(ctx context.Context, countryIDs []int64) ([]model.Record, error)
	// LatestYear returns the most recent year with a CO2 value, or
	// ErrNotFound when no observation exists.
	LatestYear(ctx context.Context) (int, error)
	// Counts returns table row counts.
	Counts(ctx context.Context) (Counts, error)
	// Ping checks the connection.
	Ping(ctx context.Context) error
	// Close releases the connection pool.
	Close() error
}

// Writer upserts directory rows and observations.
type Writer interface {
	UpsertCountry(ctx context.Context, c model.Country) (int64, error)
	UpsertYear(ctx context.Context, year int) (int64, error)
	UpsertEmission(ctx context.Context, e model.Emission) error
}
