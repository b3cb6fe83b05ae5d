// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and CO2_ environment variables on top.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver is "sqlite" or "pgx".
	DBDriver string `koanf:"db_driver"`

	// DBDSN is a file path for sqlite or a connection URL for postgres.
	DBDSN string `koanf:"db_dsn"`

	DBMaxOpenConns int `koanf:"db_max_open_conns"`
	DBMaxIdleConns int `koanf:"db_max_idle_conns"`

	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool `koanf:"auto_migrate"`

	// ForecastCutoffYear is the earliest year used to fit the trend model.
	ForecastCutoffYear int `koanf:"forecast_cutoff_year"`

	// ForecastHorizon is the number of predicted years past the last observation.
	ForecastHorizon int `koanf:"forecast_horizon"`

	// ForecastChangepointPriorScale controls how freely the trend bends.
	ForecastChangepointPriorScale float64 `koanf:"forecast_changepoint_prior_scale"`

	// CORSAllowedOrigin is sent as Access-Control-Allow-Origin.
	CORSAllowedOrigin string `koanf:"cors_allowed_origin"`

	// RequestTimeoutMS bounds each API request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                      "info",
		LogFormat:                     "text",
		Addr:                          ":8080",
		DBDriver:                      "sqlite",
		DBDSN:                         "co2.db",
		DBMaxOpenConns:                10,
		DBMaxIdleConns:                5,
		AutoMigrate:                   true,
		ForecastCutoffYear:            1990,
		ForecastHorizon:               36,
		ForecastChangepointPriorScale: 0.5,
		CORSAllowedOrigin:             "*",
		RequestTimeoutMS:              30_000,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "sqlite" && c.DBDriver != "pgx":
		return fmt.Errorf("%w: db_driver %q is not one of sqlite, pgx", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q is not one of text, json", ErrInvalidConfig, c.LogFormat)
	case c.ForecastHorizon <= 0:
		return fmt.Errorf("%w: forecast_horizon must be positive", ErrInvalidConfig)
	case c.ForecastCutoffYear <= 0:
		return fmt.Errorf("%w: forecast_cutoff_year must be positive", ErrInvalidConfig)
	case c.ForecastChangepointPriorScale <= 0:
		return fmt.Errorf("%w: forecast_changepoint_prior_scale must be positive", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	case c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0:
		return fmt.Errorf("%w: pool sizes must not be negative", ErrInvalidConfig)
	}
	return nil
}
