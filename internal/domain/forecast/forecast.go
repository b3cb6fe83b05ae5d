// Package forecast extends one country's observed history with model
// predictions.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/co2charts/internal/domain/series"
	"github.com/okian/co2charts/pkg/logger"
	"github.com/okian/co2charts/pkg/metrics"
)

// Default forecast configuration constants.
const (
	DefaultCutoffYear = 1990
	DefaultHorizon    = 36 // annual periods
)

// Observation is one non-absent (year, value) pair fed to a model.
type Observation struct {
	Year  int
	Value float64
}

// Prediction holds aligned predicted years and values.
type Prediction struct {
	Years  []int
	Values []float64
}

// Points converts the prediction into dense series points.
func (p Prediction) Points() []series.Point {
	out := make([]series.Point, len(p.Years))
	for i, y := range p.Years {
		out[i] = series.Point{Year: y, Value: series.Float(p.Values[i])}
	}
	return out
}

// Model fits a forecaster on observations from cutoff onward.
type Model interface {
	Fit(obs []Observation, cutoff int) (Predictor, error)
}

// Predictor produces predictions for the fitted span plus horizon future
// periods.
type Predictor interface {
	Predict(horizon int) (Prediction, error)
}

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithCutoffYear sets the earliest year used for fitting.
func WithCutoffYear(year int) Option {
	return func(a *Adapter) {
		if year > 0 {
			a.cutoff = year
		}
	}
}

// WithHorizon sets the number of future annual periods to predict.
func WithHorizon(periods int) Option {
	return func(a *Adapter) {
		if periods > 0 {
			a.horizon = periods
		}
	}
}

// WithLogger sets a custom logger for the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// Adapter wraps a Model with the cutoff and horizon policy.
type Adapter struct {
	model   Model
	cutoff  int
	horizon int
	logger  logger.Logger
}

// NewAdapter creates an adapter around model.
func NewAdapter(model Model, opts ...Option) *Adapter {
	a := &Adapter{
		model:   model,
		cutoff:  DefaultCutoffYear,
		horizon: DefaultHorizon,
		logger:  logger.Get().Named("forecast"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CutoffYear returns the configured training cutoff.
func (a *Adapter) CutoffYear() int { return a.cutoff }

// Horizon returns the configured number of future periods.
func (a *Adapter) Horizon() int { return a.horizon }

// Forecast fits the model on the observed history of s and predicts its
// fitted span plus the horizon. A series with no present value yields a
// *series.NoDataError; every model failure is a *FailureError.
func (a *Adapter) Forecast(ctx context.Context, s series.Series) (Prediction, error) {
	present := 0
	obs := make([]Observation, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Value == nil {
			continue
		}
		present++
		if p.Year < a.cutoff {
			continue
		}
		obs = append(obs, Observation{Year: p.Year, Value: *p.Value})
	}
	if present == 0 {
		return Prediction{}, &series.NoDataError{Selection: fmt.Sprintf("forecast of %s", displayName(s))}
	}

	start := time.Now()
	pred, err := a.fitAndPredict(obs)
	metrics.RecordForecastFitLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordForecastFailure()
		a.logger.Error(ctx, "forecast failed",
			logger.Int64("country_id", s.CountryID),
			logger.Int("observations", len(obs)),
			logger.Error(err))
		return Prediction{}, &FailureError{Country: displayName(s), Err: err}
	}

	a.logger.Debug(ctx, "forecast fitted",
		logger.Int64("country_id", s.CountryID),
		logger.Int("observations", len(obs)),
		logger.Int("predicted", len(pred.Years)),
		logger.Duration("elapsed", time.Since(start)))
	return pred, nil
}

func (a *Adapter) fitAndPredict(obs []Observation) (Prediction, error) {
	if len(obs) == 0 {
		return Prediction{}, fmt.Errorf("no observations from %d: %w", a.cutoff, ErrInsufficientHistory)
	}
	predictor, err := a.model.Fit(obs, a.cutoff)
	if err != nil {
		return Prediction{}, fmt.Errorf("fit: %w", err)
	}
	pred, err := predictor.Predict(a.horizon)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	if len(pred.Years) != len(pred.Values) {
		return Prediction{}, ErrMisalignedOutput
	}
	return pred, nil
}

func displayName(s series.Series) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("country %d", s.CountryID)
}
