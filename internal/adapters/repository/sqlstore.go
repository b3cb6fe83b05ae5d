package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/co2charts/internal/domain/model"
	"github.com/okian/co2charts/pkg/logger"
	"github.com/okian/co2charts/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	pingTimeout         = 2 * time.Second
)

// SQLStore implements Store and Writer on database/sql. It speaks SQLite
// through modernc.org/sqlite and PostgreSQL through pgx.
type SQLStore struct {
	db      *sql.DB
	driver  string
	maxOpen int
	maxIdle int
	logger  logger.Logger
}

var (
	_ Store  = (*SQLStore)(nil)
	_ Writer = (*SQLStore)(nil)
)

// Open opens a pooled connection for driver and verifies it with a ping.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%q: %w", driver, ErrUnsupportedDriver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}

	s := &SQLStore{
		driver:  driver,
		maxOpen: defaultMaxOpenConns,
		maxIdle: defaultMaxIdleConns,
		logger:  logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	switch driver {
	case DriverSQLite:
		// One physical connection serialises access and keeps pragmas and
		// in-memory databases alive for the whole process.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(s.maxOpen)
		db.SetMaxIdleConns(s.maxIdle)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	s.db = db

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s.logger.Info(ctx, "store opened", logger.String("driver", driver))
	return s, nil
}

// Driver returns the database/sql driver name.
func (s *SQLStore) Driver() string { return s.driver }

// DB exposes the pool for maintenance tasks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Migrate applies the embedded schema for the store's driver.
func (s *SQLStore) Migrate(ctx context.Context) error {
	n, err := ApplyMigrations(ctx, s.db, s.driver, migrationFS, migrationRoot(s.driver))
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	s.logger.Info(ctx, "migrations applied", logger.Int("applied", n))
	return nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Countries implements Store.
func (s *SQLStore) Countries(ctx context.Context) ([]model.Country, error) {
	var out []model.Country
	err := s.observe("countries", func() error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT country_id, name, iso_code, surface_km2 FROM countries ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCountry(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return out, nil
}

// Country implements Store.
func (s *SQLStore) Country(ctx context.Context, id int64) (model.Country, error) {
	var c model.Country
	err := s.observe("country", func() error {
		row := s.db.QueryRowContext(ctx, s.bind(
			"SELECT country_id, name, iso_code, surface_km2 FROM countries WHERE country_id = ?"), id)
		var err error
		c, err = scanCountry(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Country{}, fmt.Errorf("country %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Country{}, fmt.Errorf("get country %d: %w", id, err)
	}
	return c, nil
}

// Years implements Store.
func (s *SQLStore) Years(ctx context.Context) ([]model.Year, error) {
	var out []model.Year
	err := s.observe("years", func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT year_id, year FROM years ORDER BY year")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var y model.Year
			if err := rows.Scan(&y.ID, &y.Year); err != nil {
				return err
			}
			out = append(out, y)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	return out, nil
}

// Records implements Store.
func (s *SQLStore) Records(ctx context.Context, countryIDs []int64) ([]model.Record, error) {
	if len(countryIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(countryIDs))
	for i, id := range countryIDs {
		args[i] = id
	}
	query := s.bind(`SELECT c.country_id, c.name, y.year, e.co2, c.surface_km2
FROM emissions e
JOIN countries c ON c.country_id = e.country_id
JOIN years y ON y.year_id = e.year_id
WHERE e.country_id IN (` + placeholders(len(countryIDs)) + `)
ORDER BY c.country_id, y.year`)

	var out []model.Record
	err := s.observe("records", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r    model.Record
				co2  sql.NullFloat64
				area sql.NullFloat64
			)
			if err := rows.Scan(&r.CountryID, &r.CountryName, &r.Year, &co2, &area); err != nil {
				return err
			}
			r.CO2 = floatPtr(co2)
			r.SurfaceKm2 = floatPtr(area)
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return out, nil
}

// LatestYear implements Store.
func (s *SQLStore) LatestYear(ctx context.Context) (int, error) {
	var latest sql.NullInt64
	err := s.observe("latest_year", func() error {
		return s.db.QueryRowContext(ctx, `SELECT MAX(y.year)
FROM emissions e
JOIN years y ON y.year_id = e.year_id
WHERE e.co2 IS NOT NULL`).Scan(&latest)
	})
	if err != nil {
		return 0, fmt.Errorf("latest year: %w", err)
	}
	if !latest.Valid {
		return 0, fmt.Errorf("latest year: %w", ErrNotFound)
	}
	return int(latest.Int64), nil
}

// Counts implements Store.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.observe("counts", func() error {
		for _, q := range []struct {
			table string
			dst   *int64
		}{
			{"countries", &c.Countries},
			{"years", &c.Years},
			{"emissions", &c.Emissions},
		} {
			if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
				return fmt.Errorf("%s: %w", q.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// UpsertCountry implements Writer. Countries are keyed by name.
func (s *SQLStore) UpsertCountry(ctx context.Context, c model.Country) (int64, error) {
	var id int64
	err := s.observe("upsert_country", func() error {
		return s.db.QueryRowContext(ctx, s.bind(`INSERT INTO countries (name, iso_code, surface_km2)
VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    iso_code = COALESCE(excluded.iso_code, countries.iso_code),
    surface_km2 = COALESCE(excluded.surface_km2, countries.surface_km2)
RETURNING country_id`), c.Name, c.ISOCode, c.SurfaceKm2).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert country %q: %w", c.Name, err)
	}
	return id, nil
}

// UpsertYear implements Writer.
func (s *SQLStore) UpsertYear(ctx context.Context, year int) (int64, error) {
	var id int64
	err := s.observe("upsert_year", func() error {
		return s.db.QueryRowContext(ctx, s.bind(`INSERT INTO years (year) VALUES (?)
ON CONFLICT (year) DO UPDATE SET year = excluded.year
RETURNING year_id`), year).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert year %d: %w", year, err)
	}
	return id, nil
}

// UpsertEmission implements Writer. A second write for the same (country,
// year) replaces the first.
func (s *SQLStore) UpsertEmission(ctx context.Context, e model.Emission) error {
	err := s.observe("upsert_emission", func() error {
		_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO emissions (country_id, year_id, co2, co2_per_km2, population)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (country_id, year_id) DO UPDATE SET
    co2 = excluded.co2,
    co2_per_km2 = excluded.co2_per_km2,
    population = excluded.population`), e.CountryID, e.YearID, e.CO2, e.CO2PerKm2, e.Population)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert emission (country %d, year %d): %w", e.CountryID, e.YearID, err)
	}
	return nil
}

// observe times fn and records query metrics.
func (s *SQLStore) observe(query string, fn func() error) error {
	if s.db == nil {
		return ErrClosed
	}
	start := time.Now()
	err := fn()
	metrics.RecordRepositoryQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateRepositoryOpenConnections(s.db.Stats().OpenConnections)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.RecordRepositoryError(query)
	}
	return err
}

func (s *SQLStore) bind(query string) string {
	return rebind(s.driver, query)
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			sb.WriteByte(query[i])
			continue
		}
		n++
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCountry(row rowScanner) (model.Country, error) {
	var (
		c    model.Country
		iso  sql.NullString
		area sql.NullFloat64
	)
	if err := row.Scan(&c.ID, &c.Name, &iso, &area); err != nil {
		return model.Country{}, err
	}
	if iso.Valid {
		v := iso.String
		c.ISOCode = &v
	}
	c.SurfaceKm2 = floatPtr(area)
	return c, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
