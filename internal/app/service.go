// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "github.com/okian/co2charts/internal/adapters/repository"
	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/internal/domain/forecast"
	"github.com/okian/co2charts/internal/domain/series"
	"github.com/okian/co2charts/internal/domain/types"
	"github.com/okian/co2charts/pkg/logger"
	"github.com/okian/co2charts/pkg/metrics"
)

// ErrNotStarted is returned by request methods before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the chart system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	model      forecast.Model
	forecaster *forecast.Adapter

	// Configuration
	driver      string
	dsn         string
	maxOpen     int
	maxIdle     int
	autoMigrate bool
	cutoff      int
	horizon     int
	priorScale  float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore injects an already opened store. Start then skips opening one.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDatabase selects the driver and DSN Start opens.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
		}
		if dsn != "" {
			s.dsn = dsn
		}
	}
}

// WithPool sets connection pool limits.
func WithPool(maxOpen, maxIdle int) Option {
	return func(s *Service) {
		s.maxOpen = maxOpen
		s.maxIdle = maxIdle
	}
}

// WithAutoMigrate applies the embedded schema when Start opens the store.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Service) {
		s.autoMigrate = enabled
	}
}

// WithForecastModel replaces the default trend model.
func WithForecastModel(model forecast.Model) Option {
	return func(s *Service) {
		if model != nil {
			s.model = model
		}
	}
}

// WithForecastCutoff sets the earliest year used for fitting.
func WithForecastCutoff(year int) Option {
	return func(s *Service) {
		if year > 0 {
			s.cutoff = year
		}
	}
}

// WithForecastHorizon sets the number of predicted future years.
func WithForecastHorizon(periods int) Option {
	return func(s *Service) {
		if periods > 0 {
			s.horizon = periods
		}
	}
}

// WithChangepointPriorScale tunes the default trend model.
func WithChangepointPriorScale(scale float64) Option {
	return func(s *Service) {
		if scale > 0 {
			s.priorScale = scale
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:     repository.DriverSQLite,
		dsn:        "co2.db",
		cutoff:     forecast.DefaultCutoffYear,
		horizon:    forecast.DefaultHorizon,
		priorScale: 0.5,
		logger:     nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store when none was injected and wires the forecaster.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting chart service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.driver, s.dsn,
			repository.WithMaxOpenConns(s.maxOpen),
			repository.WithMaxIdleConns(s.maxIdle),
			repository.WithLogger(s.logger.Named("store")),
		)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if s.autoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return err
			}
		}
		s.store = store
	}

	if s.model == nil {
		s.model = forecast.NewTrendModel(forecast.WithChangepointPriorScale(s.priorScale))
	}
	s.forecaster = forecast.NewAdapter(s.model,
		forecast.WithCutoffYear(s.cutoff),
		forecast.WithHorizon(s.horizon),
		forecast.WithLogger(s.logger.Named("forecast")),
	)

	s.started = true
	s.logger.Info(ctx, "chart service started",
		logger.String("driver", s.driver),
		logger.Int("cutoffYear", s.cutoff),
		logger.Int("horizon", s.horizon),
	)

	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping chart service...")

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
		}
		s.store = nil
	}

	s.started = false
	s.logger.Info(context.Background(), "chart service stopped")
}

// Started reports whether Start has completed.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) deps() (repository.Store, *forecast.Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.store == nil {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.forecaster, nil
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	store, _, err := s.deps()
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// ListCountries returns the country directory.
func (s *Service) ListCountries(ctx context.Context) ([]types.Country, error) {
	store, _, err := s.deps()
	if err != nil {
		return nil, err
	}
	rows, err := store.Countries(ctx)
	if err != nil {
		return nil, err
	}
	return types.Countries(rows), nil
}

// ListYears returns the year directory.
func (s *Service) ListYears(ctx context.Context) ([]types.Year, error) {
	store, _, err := s.deps()
	if err != nil {
		return nil, err
	}
	rows, err := store.Years(ctx)
	if err != nil {
		return nil, err
	}
	return types.Years(rows), nil
}

// GenerateChart validates req and runs either the comparison path or the
// forecast path. It returns a complete payload or an error, never both.
func (s *Service) GenerateChart(ctx context.Context, req chart.Request) (chart.Payload, error) {
	start := time.Now()
	mode := req.Mode()
	metrics.RecordChartRequest(string(mode))

	if err := req.Validate(); err != nil {
		metrics.RecordChartRejected(rejectionClass(err))
		return chart.Payload{}, err
	}

	store, forecaster, err := s.deps()
	if err != nil {
		return chart.Payload{}, err
	}

	var payload chart.Payload
	if mode == chart.ModeForecast {
		payload, err = s.forecastChart(ctx, store, forecaster, req)
	} else {
		payload, err = s.comparisonChart(ctx, store, req)
	}
	if err != nil {
		metrics.RecordChartRejected(rejectionClass(err))
		s.logger.Debug(ctx, "chart rejected",
			logger.String("mode", string(mode)),
			logger.Int64s("countries", req.CountryIDs),
			logger.Error(err))
		return chart.Payload{}, err
	}

	elapsed := time.Since(start)
	metrics.RecordChartAssemblyLatency(string(mode), float64(elapsed.Microseconds())/1000)
	metrics.RecordChartSeries(len(payload.Series))
	s.logger.Debug(ctx, "chart assembled",
		logger.String("mode", string(mode)),
		logger.Int64s("countries", req.CountryIDs),
		logger.Int("years", len(payload.Years)),
		logger.Duration("elapsed", elapsed))
	return payload, nil
}

func (s *Service) comparisonChart(ctx context.Context, store repository.Store, req chart.Request) (chart.Payload, error) {
	records, err := store.Records(ctx, req.CountryIDs)
	if err != nil {
		return chart.Payload{}, err
	}
	criteria := req.Criteria()
	selected := series.Filter(records, criteria)
	if req.ShowDensity {
		selected, err = series.Normalize(selected)
		if err != nil {
			return chart.Payload{}, err
		}
	}
	res, err := series.Build(selected, criteria)
	if err != nil {
		return chart.Payload{}, err
	}
	return chart.Assemble(res), nil
}

func (s *Service) forecastChart(ctx context.Context, store repository.Store, forecaster *forecast.Adapter, req chart.Request) (chart.Payload, error) {
	latest, err := store.LatestYear(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return chart.Payload{}, &series.NoDataError{Selection: "forecast: the store holds no observations"}
	}
	if err != nil {
		return chart.Payload{}, err
	}
	if err := req.CheckForecastWindow(latest); err != nil {
		return chart.Payload{}, err
	}

	countryID := req.CountryIDs[0]
	records, err := store.Records(ctx, []int64{countryID})
	if err != nil {
		return chart.Payload{}, err
	}
	observed := series.Observed(records, countryID)
	if observed.Name == "" {
		c, err := store.Country(ctx, countryID)
		switch {
		case err == nil:
			observed.Name = c.Name
		case !errors.Is(err, repository.ErrNotFound):
			return chart.Payload{}, err
		}
	}

	pred, err := forecaster.Forecast(ctx, observed)
	if err != nil {
		return chart.Payload{}, err
	}
	merged := series.Merge(observed.Points, pred.Points())
	return chart.AssembleForecast(observed.Name, merged), nil
}

// rejectionClass labels an error for the rejection counter.
func rejectionClass(err error) string {
	switch {
	case errors.Is(err, chart.ErrValidation):
		return "validation"
	case errors.Is(err, series.ErrNoData):
		return "no_data"
	case errors.Is(err, series.ErrMissingArea):
		return "missing_area"
	case errors.Is(err, forecast.ErrForecastFailed):
		return "forecast"
	default:
		return "internal"
	}
}
