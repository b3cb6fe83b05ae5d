// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/okian/co2charts/internal/domain/series"
	"github.com/okian/co2charts/internal/domain/types"
	"github.com/okian/co2charts/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ChartGenerator
	DirectoryProvider
	Pinger
}

// ChartGenerator runs the chart pipeline.
type ChartGenerator interface {
	GenerateChart(ctx context.Context, req chart.Request) (chart.Payload, error)
}

// DirectoryProvider exposes the country and year directories.
type DirectoryProvider interface {
	ListCountries(ctx context.Context) ([]types.Country, error)
	ListYears(ctx context.Context) ([]types.Year, error)
}

// Pinger checks backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	chartHandler     *ChartHandler
	directoryHandler *DirectoryHandler
	exportHandler    *ExportHandler

	corsOrigin     string
	requestTimeout time.Duration
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		corsOrigin:     "*",
		requestTimeout: 30 * time.Second,
		logger:         logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.chartHandler = NewChartHandler(deps, s.logger)
	s.directoryHandler = NewDirectoryHandler(deps, s.logger)
	s.exportHandler = NewExportHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux. Data routes are served both at
// the root and under /api.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	data := []struct {
		path     string
		endpoint string
		handler  http.HandlerFunc
	}{
		{"/chart", "chart", s.chartHandler.HandleChart},
		{"/countries", "countries", s.directoryHandler.HandleCountries},
		{"/years", "years", s.directoryHandler.HandleYears},
	}
	for _, route := range data {
		h := s.wrap(route.handler, route.endpoint)
		mux.Handle(route.path, h)
		mux.Handle("/api"+route.path, h)
	}

	mux.Handle("/api/chart/export", s.wrap(s.exportHandler.HandleExport, "chart_export"))
	mux.Handle("/health", s.wrap(s.healthHandler.HandleHealth, "health"))
	mux.Handle("/metrics", s.healthHandler.HandleMetrics())
	mux.Handle("/", s.wrap(s.healthHandler.HandleRoot, "root"))
}

func (s *Server) wrap(h http.HandlerFunc, endpoint string) http.Handler {
	return RequestIDMiddleware(
		CORSMiddleware(s.corsOrigin,
			TimeoutMiddleware(s.requestTimeout,
				MetricsMiddleware(h, endpoint))))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a pipeline error onto the response taxonomy. Only
// user-facing classes echo their message; everything else is logged and
// answered with a generic 500.
func writeDomainError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	var (
		validation *chart.ValidationError
		noData     *series.NoDataError
		missing    *series.MissingAreaError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_error", validation)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrMethodNotAllowed):
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	case errors.As(err, &noData):
		writeError(w, http.StatusUnprocessableEntity, "no_data", noData)
	case errors.As(err, &missing):
		writeError(w, http.StatusUnprocessableEntity, "missing_surface_area", missing)
	default:
		log.Error(ctx, "request failed",
			logger.String("op", op),
			logger.String("request_id", RequestIDFromContext(ctx)),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
	}
}
