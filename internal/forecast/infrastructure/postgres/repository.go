package postgres

import (
	"context"
	"errors"

	forecast "hydrospark/internal/forecast/domain"
	"hydrospark/internal/platform/database"
	usage "hydrospark/internal/usage/domain"
)

// Repository persists forecast points.
type Repository struct {
	db database.Querier
}

// NewRepository constructs a repository over db or a transaction.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// DeleteByAccount removes every stored point of the account.
func (r *Repository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("forecast repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM forecast_points WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertBatch stores points in order.
func (r *Repository) InsertBatch(ctx context.Context, points []forecast.Point) error {
	if r == nil || r.db == nil {
		return errors.New("forecast repo: nil db")
	}
	for _, p := range points {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO forecast_points (
	id, account_id, forecast_date, predicted_quantity, predicted_amount,
	confidence_lower, confidence_upper, model_version, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.AccountID, usage.DayStart(p.Date), p.PredictedQuantity, p.PredictedAmount,
			p.ConfidenceLower, p.ConfidenceUpper, p.ModelVersion, p.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByAccount returns stored points ordered by date.
func (r *Repository) ListByAccount(ctx context.Context, accountID string) ([]forecast.Point, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("forecast repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, account_id, forecast_date, predicted_quantity, predicted_amount,
	confidence_lower, confidence_upper, model_version, created_at
FROM forecast_points
WHERE account_id = $1
ORDER BY forecast_date ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []forecast.Point
	for rows.Next() {
		var p forecast.Point
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Date, &p.PredictedQuantity, &p.PredictedAmount,
			&p.ConfidenceLower, &p.ConfidenceUpper, &p.ModelVersion, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Date = usage.DayStart(p.Date)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
