package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	rates "hydrospark/internal/rates/domain"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// IsValid reports whether the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusPaid, StatusOverdue:
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

// Invoice is a priced billing period. Prices are snapshotted at creation.
type Invoice struct {
	ID          string
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	RateSource  rates.Source
	DueDate     time.Time
	Status      Status
	Estimated   bool
	CreatedAt   time.Time
}

// Period returns the invoice billing period.
func (i Invoice) Period() Period {
	return Period{Start: i.PeriodStart, End: i.PeriodEnd}
}
