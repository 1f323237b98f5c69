package anomaly

import (
	"context"
	"time"
)

// Repository persists anomaly alerts.
type Repository interface {
	Insert(ctx context.Context, alert *Alert) error
	ExistsForDay(ctx context.Context, accountID string, date time.Time) (bool, error)
	ListByAccount(ctx context.Context, accountID string) ([]Alert, error)
}
