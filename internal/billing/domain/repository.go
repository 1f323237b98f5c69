package billing

import (
	"context"
	"time"
)

// InvoiceRepository persists invoices.
type InvoiceRepository interface {
	Exists(ctx context.Context, accountID string, start, end time.Time) (bool, error)
	Insert(ctx context.Context, invoice *Invoice) error
	// Latest returns nil when the account has no invoices.
	Latest(ctx context.Context, accountID string) (*Invoice, error)
	ListByAccount(ctx context.Context, accountID string) ([]Invoice, error)
}
