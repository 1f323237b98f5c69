package forecast

import "errors"

var (
	// ErrInvalidHorizon is returned when the horizon is not positive.
	ErrInvalidHorizon = errors.New("forecast: horizon must be positive")
	// ErrEmptyHistory is returned when a model is fitted on no data.
	ErrEmptyHistory = errors.New("forecast: empty history")
)
