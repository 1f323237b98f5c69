package usage

import (
	"context"
	"time"
)

// AccountRepository loads accounts owned by the account store.
type AccountRepository interface {
	Get(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
}

// ConsumptionRepository reads metered consumption.
type ConsumptionRepository interface {
	// ListRange returns records with date in [from, to], ordered by date.
	ListRange(ctx context.Context, accountID string, from, to time.Time) ([]ConsumptionRecord, error)
	// SumRange aggregates records with date in [from, to].
	SumRange(ctx context.Context, accountID string, from, to time.Time) (Totals, error)
	// Span returns the first and last observed dates; ok is false when the account has no records.
	Span(ctx context.Context, accountID string) (span Span, ok bool, err error)
}
