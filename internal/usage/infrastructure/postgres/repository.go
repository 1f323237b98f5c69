package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hydrospark/internal/platform/database"
	usage "hydrospark/internal/usage/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// AccountRepository reads accounts.
type AccountRepository struct {
	db database.Querier
}

// NewAccountRepository constructs a repository over db or a transaction.
func NewAccountRepository(db database.Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Get loads an account; ErrAccountNotFound when missing.
func (r *AccountRepository) Get(ctx context.Context, id string) (*usage.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, account_type, region, custom_rate
FROM accounts
WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", usage.ErrAccountNotFound, id)
	}
	return account, nil
}

// List returns every account ordered by id.
func (r *AccountRepository) List(ctx context.Context) ([]usage.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, account_type, region, custom_rate
FROM accounts
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []usage.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAccount(row rowScanner) (*usage.Account, error) {
	var (
		account     usage.Account
		accountType string
	)
	if err := row.Scan(&account.ID, &account.Name, &accountType, &account.Region, &account.CustomRate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	// Unknown types are kept so rate resolution can fall back to the default price.
	account.Type = usage.AccountType(accountType)
	return &account, nil
}

// ConsumptionRepository reads daily consumption records.
type ConsumptionRepository struct {
	db database.Querier
}

// NewConsumptionRepository constructs a repository over db or a transaction.
func NewConsumptionRepository(db database.Querier) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// ListRange returns records with usage_date in [from, to] ordered by date.
func (r *ConsumptionRepository) ListRange(ctx context.Context, accountID string, from, to time.Time) ([]usage.ConsumptionRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumption repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT account_id, usage_date, quantity, estimated
FROM consumption_records
WHERE account_id = $1 AND usage_date >= $2 AND usage_date <= $3
ORDER BY usage_date ASC`, accountID, usage.DayStart(from), usage.DayStart(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []usage.ConsumptionRecord
	for rows.Next() {
		var record usage.ConsumptionRecord
		if err := rows.Scan(&record.AccountID, &record.Date, &record.Quantity, &record.Estimated); err != nil {
			return nil, err
		}
		record.Date = usage.DayStart(record.Date)
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SumRange aggregates records with usage_date in [from, to].
func (r *ConsumptionRepository) SumRange(ctx context.Context, accountID string, from, to time.Time) (usage.Totals, error) {
	if r == nil || r.db == nil {
		return usage.Totals{}, errors.New("consumption repo: nil db")
	}
	var (
		quantity  decimal.Decimal
		records   int
		estimated bool
	)
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(quantity), 0), COUNT(*), COALESCE(BOOL_OR(estimated), FALSE)
FROM consumption_records
WHERE account_id = $1 AND usage_date >= $2 AND usage_date <= $3`,
		accountID, usage.DayStart(from), usage.DayStart(to)).Scan(&quantity, &records, &estimated)
	if err != nil {
		return usage.Totals{}, err
	}
	return usage.Totals{Quantity: quantity, Records: records, Estimated: estimated}, nil
}

// Span returns the first and last usage dates of the account.
func (r *ConsumptionRepository) Span(ctx context.Context, accountID string) (usage.Span, bool, error) {
	if r == nil || r.db == nil {
		return usage.Span{}, false, errors.New("consumption repo: nil db")
	}
	var first, last sql.NullTime
	err := r.db.QueryRowContext(ctx, `
SELECT MIN(usage_date), MAX(usage_date)
FROM consumption_records
WHERE account_id = $1`, accountID).Scan(&first, &last)
	if err != nil {
		return usage.Span{}, false, err
	}
	if !first.Valid || !last.Valid {
		return usage.Span{}, false, nil
	}
	return usage.Span{First: usage.DayStart(first.Time), Last: usage.DayStart(last.Time)}, true, nil
}
