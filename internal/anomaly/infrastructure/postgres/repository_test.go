package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	anomaly "hydrospark/internal/anomaly/domain"
)

var alertColumns = []string{"id", "account_id", "alert_date", "observed", "expected", "deviation_pct",
	"risk_score", "alert_type", "status", "created_at"}

func TestRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	alert := &anomaly.Alert{
		ID:           "a-1",
		AccountID:    "acc-1",
		Date:         time.Date(2024, 5, 4, 13, 0, 0, 0, time.UTC),
		Observed:     decimal.NewFromInt(100),
		Expected:     decimal.NewFromInt(11),
		DeviationPct: decimal.RequireFromString("809.09"),
		RiskScore:    decimal.NewFromInt(100),
		Type:         anomaly.TypeSpike,
		Status:       anomaly.StatusNew,
		CreatedAt:    time.Date(2024, 5, 5, 2, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(`INSERT INTO anomaly_alerts`).
		WithArgs("a-1", "acc-1", time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"spike", "new", alert.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewRepository(db).Insert(context.Background(), alert))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertNil(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.ErrorIs(t, NewRepository(db).Insert(context.Background(), nil), anomaly.ErrNilAlert)
}

func TestRepository_ExistsForDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("acc-1", time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := NewRepository(db).ExistsForDay(context.Background(), "acc-1", time.Date(2024, 5, 4, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_ListByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 5, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM anomaly_alerts`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(alertColumns).
			AddRow("a-1", "acc-1", time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), "100.00", "11.00", "809.09", "100.00", "spike", "acknowledged", created).
			AddRow("a-2", "acc-1", time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), "0.00", "11.00", "-100.00", "100.00", "unusual_pattern", "new", created))

	alerts, err := NewRepository(db).ListByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, anomaly.StatusAcknowledged, alerts[0].Status)
	assert.Equal(t, anomaly.TypeUnusualPattern, alerts[1].Type)
	assert.Equal(t, "-100", alerts[1].DeviationPct.String())
}

func TestRepository_ListRejectsUnknownType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM anomaly_alerts`).
		WillReturnRows(sqlmock.NewRows(alertColumns).
			AddRow("a-1", "acc-1", time.Now(), "1", "1", "0", "0", "drought", "new", time.Now()))

	_, err = NewRepository(db).ListByAccount(context.Background(), "acc-1")
	assert.ErrorIs(t, err, anomaly.ErrInvalidType)
}
