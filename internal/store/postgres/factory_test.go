package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrospark/internal/store"
)

func TestNewFactoryNilDB(t *testing.T) {
	_, err := NewFactory(nil)
	require.Error(t, err)
}

func TestRunCommitsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`DELETE FROM forecast_points`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	factory, err := NewFactory(db)
	require.NoError(t, err)

	err = store.Run(context.Background(), factory, func(uow store.UnitOfWork) error {
		day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		if _, err := uow.Invoices().Exists(context.Background(), "acc-1", day.AddDate(0, 0, -30), day); err != nil {
			return err
		}
		_, err := uow.Forecasts().DeleteByAccount(context.Background(), "acc-1")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO anomaly_alerts`).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	factory, err := NewFactory(db)
	require.NoError(t, err)

	err = store.Run(context.Background(), factory, func(uow store.UnitOfWork) error {
		return uow.Alerts().Insert(context.Background(), sampleAlert())
	})
	require.EqualError(t, err, "constraint")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWorkClosedAfterCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	factory, err := NewFactory(db)
	require.NoError(t, err)
	uow, err := factory.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, uow.Commit())
	assert.ErrorIs(t, uow.Commit(), store.ErrClosed)
	assert.NoError(t, uow.Rollback())
}
