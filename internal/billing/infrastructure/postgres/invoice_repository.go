package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "hydrospark/internal/billing/domain"
	"hydrospark/internal/platform/database"
	rates "hydrospark/internal/rates/domain"
	usage "hydrospark/internal/usage/domain"
)

const invoiceColumns = `id, account_id, period_start, period_end, quantity, unit_price, amount,
	rate_source, due_date, status, estimated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// InvoiceRepository persists invoices.
type InvoiceRepository struct {
	db database.Querier
}

// NewInvoiceRepository constructs a repository over db or a transaction.
func NewInvoiceRepository(db database.Querier) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Exists reports whether an invoice covers exactly [start, end].
func (r *InvoiceRepository) Exists(ctx context.Context, accountID string, start, end time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("invoice repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM invoices
	WHERE account_id = $1 AND period_start = $2 AND period_end = $3
)`, accountID, usage.DayStart(start), usage.DayStart(end)).Scan(&exists)
	return exists, err
}

// Insert stores a new invoice. A period collision maps to ErrDuplicateInvoice.
func (r *InvoiceRepository) Insert(ctx context.Context, invoice *billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		invoice.ID, invoice.AccountID, usage.DayStart(invoice.PeriodStart), usage.DayStart(invoice.PeriodEnd),
		invoice.Quantity, invoice.UnitPrice, invoice.Amount, string(invoice.RateSource),
		usage.DayStart(invoice.DueDate), string(invoice.Status), invoice.Estimated, invoice.CreatedAt)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s..%s", billing.ErrDuplicateInvoice, invoice.AccountID,
			invoice.PeriodStart.Format(time.DateOnly), invoice.PeriodEnd.Format(time.DateOnly))
	}
	return err
}

// Latest returns the invoice with the latest period end, or nil.
func (r *InvoiceRepository) Latest(ctx context.Context, accountID string) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+invoiceColumns+`
FROM invoices
WHERE account_id = $1
ORDER BY period_end DESC
LIMIT 1`, accountID)
	return scanInvoice(row)
}

// ListByAccount returns invoices ordered by period start.
func (r *InvoiceRepository) ListByAccount(ctx context.Context, accountID string) ([]billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+invoiceColumns+`
FROM invoices
WHERE account_id = $1
ORDER BY period_start ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var (
		invoice billing.Invoice
		source  string
		status  string
	)
	err := row.Scan(&invoice.ID, &invoice.AccountID, &invoice.PeriodStart, &invoice.PeriodEnd,
		&invoice.Quantity, &invoice.UnitPrice, &invoice.Amount, &source,
		&invoice.DueDate, &status, &invoice.Estimated, &invoice.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if invoice.RateSource, err = rates.ParseSource(source); err != nil {
		return nil, err
	}
	if invoice.Status, err = billing.ParseStatus(status); err != nil {
		return nil, err
	}
	invoice.PeriodStart = usage.DayStart(invoice.PeriodStart)
	invoice.PeriodEnd = usage.DayStart(invoice.PeriodEnd)
	invoice.DueDate = usage.DayStart(invoice.DueDate)
	return &invoice, nil
}
