package chart

import "errors"

// ErrValidation marks a request rejected before any data access.
var ErrValidation = errors.New("invalid chart request")

// ValidationError names the violated precondition.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
