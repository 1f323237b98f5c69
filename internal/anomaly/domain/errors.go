package anomaly

import "errors"

var (
	// ErrInvalidType is returned when an alert type is unknown.
	ErrInvalidType = errors.New("anomaly: invalid alert type")
	// ErrInvalidStatus is returned when an alert status is unknown.
	ErrInvalidStatus = errors.New("anomaly: invalid alert status")
	// ErrNilAlert is returned when persisting a nil alert.
	ErrNilAlert = errors.New("anomaly: nil alert")
)
