package postgres

import (
	"context"
	"errors"
	"time"

	anomaly "hydrospark/internal/anomaly/domain"
	"hydrospark/internal/platform/database"
	usage "hydrospark/internal/usage/domain"
)

// Repository persists anomaly alerts.
type Repository struct {
	db database.Querier
}

// NewRepository constructs a repository over db or a transaction.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// Insert stores a new alert.
func (r *Repository) Insert(ctx context.Context, alert *anomaly.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return anomaly.ErrNilAlert
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO anomaly_alerts (
	id, account_id, alert_date, observed, expected, deviation_pct,
	risk_score, alert_type, status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		alert.ID, alert.AccountID, usage.DayStart(alert.Date), alert.Observed, alert.Expected, alert.DeviationPct,
		alert.RiskScore, string(alert.Type), string(alert.Status), alert.CreatedAt)
	return err
}

// ExistsForDay reports whether any alert was recorded for the account on date.
func (r *Repository) ExistsForDay(ctx context.Context, accountID string, date time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM anomaly_alerts WHERE account_id = $1 AND alert_date = $2
)`, accountID, usage.DayStart(date)).Scan(&exists)
	return exists, err
}

// ListByAccount returns alerts ordered by date.
func (r *Repository) ListByAccount(ctx context.Context, accountID string) ([]anomaly.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, account_id, alert_date, observed, expected, deviation_pct,
	risk_score, alert_type, status, created_at
FROM anomaly_alerts
WHERE account_id = $1
ORDER BY alert_date ASC, created_at ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []anomaly.Alert
	for rows.Next() {
		var (
			alert        anomaly.Alert
			kind, status string
		)
		if err := rows.Scan(&alert.ID, &alert.AccountID, &alert.Date, &alert.Observed, &alert.Expected,
			&alert.DeviationPct, &alert.RiskScore, &kind, &status, &alert.CreatedAt); err != nil {
			return nil, err
		}
		if alert.Type, err = anomaly.ParseType(kind); err != nil {
			return nil, err
		}
		if alert.Status, err = anomaly.ParseStatus(status); err != nil {
			return nil, err
		}
		alert.Date = usage.DayStart(alert.Date)
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
