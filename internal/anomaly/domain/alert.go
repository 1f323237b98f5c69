package anomaly

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hydrospark/internal/outcome"
)

// Type classifies an anomaly.
type Type string

const (
	TypeSpike          Type = "spike"
	TypeLeak           Type = "leak"
	TypeUnusualPattern Type = "unusual_pattern"
)

// IsValid reports whether the type is supported.
func (t Type) IsValid() bool {
	switch t {
	case TypeSpike, TypeLeak, TypeUnusualPattern:
		return true
	default:
		return false
	}
}

// ParseType converts a stored value into a Type.
func ParseType(value string) (Type, error) {
	t := Type(value)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, value)
	}
	return t, nil
}

// Status is the review state of an alert.
type Status string

const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// IsValid reports whether the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusAcknowledged, StatusResolved:
		return true
	default:
		return false
	}
}

// ParseStatus converts a stored value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// Alert is a flagged consumption day.
type Alert struct {
	ID           string
	AccountID    string
	Date         time.Time
	Observed     decimal.Decimal
	Expected     decimal.Decimal
	DeviationPct decimal.Decimal
	RiskScore    decimal.Decimal
	Type         Type
	Status       Status
	CreatedAt    time.Time
}

// Detection is the result of one detection run.
type Detection struct {
	AccountID    string
	Status       outcome.Status
	Observations int
	Flagged      int
	Duplicates   int
	Alerts       []Alert
}
