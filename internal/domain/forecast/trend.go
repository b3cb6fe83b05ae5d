package forecast

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Trend model defaults.
const (
	defaultChangepointPriorScale = 0.5
	maxChangepoints              = 25
	changepointRange             = 0.8 // share of history that may hold changepoints
	slopeRidge                   = 1e-9
)

// TrendOption applies a configuration option to the TrendModel.
type TrendOption func(*TrendModel)

// WithChangepointPriorScale sets how freely the slope may change at a
// changepoint. Larger values give a more flexible trend.
func WithChangepointPriorScale(scale float64) TrendOption {
	return func(m *TrendModel) {
		if scale > 0 && !math.IsInf(scale, 0) {
			m.priorScale = scale
		}
	}
}

// TrendModel is a piecewise-linear trend with automatic changepoints.
// Slope changes are shrunk towards zero with a ridge penalty derived from
// the changepoint prior scale. There is no seasonal component.
type TrendModel struct {
	priorScale float64
}

// NewTrendModel creates a trend model with configuration options.
func NewTrendModel(opts ...TrendOption) *TrendModel {
	m := &TrendModel{priorScale: defaultChangepointPriorScale}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit implements Model.
func (m *TrendModel) Fit(obs []Observation, cutoff int) (Predictor, error) {
	train := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Year < cutoff {
			continue
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, fmt.Errorf("year %d: %w", o.Year, ErrInvalidObservation)
		}
		train = append(train, o)
	}
	if len(train) == 0 {
		return nil, ErrInsufficientHistory
	}
	sort.Slice(train, func(i, j int) bool { return train[i].Year < train[j].Year })

	f := &fittedTrend{
		first: train[0].Year,
		last:  train[len(train)-1].Year,
	}
	f.span = float64(f.last - f.first)
	if f.span == 0 {
		f.span = 1
	}
	for _, o := range train {
		f.yScale = math.Max(f.yScale, math.Abs(o.Value))
	}
	if f.yScale == 0 {
		f.yScale = 1
	}

	n := len(train)
	t := make([]float64, n)
	y := make([]float64, n)
	for i, o := range train {
		t[i] = f.scaleYear(o.Year)
		y[i] = o.Value / f.yScale
	}
	f.changepoints = changepoints(t)

	cols := 2 + len(f.changepoints)
	x := mat.NewDense(n, cols, nil)
	for i := range t {
		x.SetRow(i, f.features(t[i]))
	}

	var gram mat.Dense
	gram.Mul(x.T(), x)
	penalty := 1 / (float64(n) * m.priorScale * m.priorScale)
	for j := 0; j < cols; j++ {
		if j < 2 {
			gram.Set(j, j, gram.At(j, j)+slopeRidge)
			continue
		}
		gram.Set(j, j, gram.At(j, j)+penalty)
	}

	var rhs mat.VecDense
	rhs.MulVec(x.T(), mat.NewVecDense(n, y))

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return nil, fmt.Errorf("solve trend: %w", err)
	}
	f.beta = mat.Col(nil, 0, &beta)
	return f, nil
}

// changepoints places up to maxChangepoints candidates evenly over the
// first changepointRange share of the scaled history.
func changepoints(t []float64) []float64 {
	histSize := int(math.Floor(float64(len(t)) * changepointRange))
	n := histSize - 1
	if n > maxChangepoints {
		n = maxChangepoints
	}
	if n < 1 {
		return nil
	}
	out := make([]float64, 0, n)
	step := float64(histSize-1) / float64(n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(step * float64(i)))
		out = append(out, t[idx])
	}
	return out
}

type fittedTrend struct {
	first, last  int
	span         float64
	yScale       float64
	changepoints []float64
	beta         []float64
}

func (f *fittedTrend) scaleYear(year int) float64 {
	return float64(year-f.first) / f.span
}

// features returns the design row [1, t, (t-s_1)+, ..., (t-s_k)+].
func (f *fittedTrend) features(t float64) []float64 {
	row := make([]float64, 2+len(f.changepoints))
	row[0] = 1
	row[1] = t
	for j, s := range f.changepoints {
		row[2+j] = math.Max(0, t-s)
	}
	return row
}

// Predict implements Predictor. It covers every year from the first fitted
// year to horizon years after the last one.
func (f *fittedTrend) Predict(horizon int) (Prediction, error) {
	if horizon <= 0 {
		return Prediction{}, ErrInvalidHorizon
	}
	end := f.last + horizon
	p := Prediction{
		Years:  make([]int, 0, end-f.first+1),
		Values: make([]float64, 0, end-f.first+1),
	}
	for year := f.first; year <= end; year++ {
		row := f.features(f.scaleYear(year))
		var v float64
		for j, b := range f.beta {
			v += b * row[j]
		}
		p.Years = append(p.Years, year)
		p.Values = append(p.Values, v*f.yScale)
	}
	return p, nil
}
