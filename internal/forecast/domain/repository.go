package forecast

import "context"

// Repository persists forecast points.
type Repository interface {
	// DeleteByAccount removes every point for the account and returns the count.
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	InsertBatch(ctx context.Context, points []Point) error
	ListByAccount(ctx context.Context, accountID string) ([]Point, error)
}
