package forecast

import (
	"errors"
	"fmt"
)

// Sentinel kinds for forecast errors.
var (
	ErrForecastFailed      = errors.New("forecast failed")
	ErrInsufficientHistory = errors.New("not enough observations to fit")
	ErrInvalidObservation  = errors.New("observation is not a finite number")
	ErrInvalidHorizon      = errors.New("forecast horizon must be positive")
	ErrMisalignedOutput    = errors.New("prediction years and values differ in length")
)

// FailureError wraps any fit or predict failure for one country. It unwraps
// to both ErrForecastFailed and the underlying cause.
type FailureError struct {
	Country string
	Err     error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("forecast for %s failed: %v", e.Country, e.Err)
}

func (e *FailureError) Unwrap() []error {
	return []error{ErrForecastFailed, e.Err}
}
