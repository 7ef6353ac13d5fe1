package domain

import "errors"

// Domain-level errors. Infrastructure errors live in the ports package.
var (
	// ErrValidation marks input that violates a record or parameter invariant
	// (non-positive price, missing timestamp, bad window lengths).
	ErrValidation = errors.New("validation error")

	// ErrInsufficientData is returned when a series is shorter than the long
	// moving-average window. Callers surface it as "no signal yet".
	ErrInsufficientData = errors.New("insufficient data")
)
