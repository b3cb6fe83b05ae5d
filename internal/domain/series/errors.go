package series

import (
	"errors"
	"fmt"
)

// Sentinel kinds for series errors. Typed errors below unwrap to these so
// callers can classify with errors.Is.
var (
	ErrNoData      = errors.New("no data")
	ErrMissingArea = errors.New("missing surface area")
)

// NoDataError reports that a selection produced no usable observations.
type NoDataError struct {
	// Selection describes what was asked for, e.g. "countries [1 2] in 1990-2020".
	Selection string
}

func (e *NoDataError) Error() string {
	return "no data available for " + e.Selection
}

func (e *NoDataError) Unwrap() error {
	return ErrNoData
}

// NewNoDataError builds a NoDataError for a comparison selection.
func NewNoDataError(c Criteria) *NoDataError {
	lo, hi := c.Bounds()
	return &NoDataError{Selection: fmt.Sprintf("countries %v in %d-%d", c.CountryIDs, lo, hi)}
}

// MissingAreaError reports a country that cannot be density-normalized.
type MissingAreaError struct {
	CountryID int64
	Country   string
}

func (e *MissingAreaError) Error() string {
	return fmt.Sprintf("surface area is not available for %s (id %d)", e.Country, e.CountryID)
}

func (e *MissingAreaError) Unwrap() error {
	return ErrMissingArea
}
