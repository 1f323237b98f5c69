// Package postgres binds the repositories of every context to one SQL transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	anomaly "hydrospark/internal/anomaly/domain"
	anomalypg "hydrospark/internal/anomaly/infrastructure/postgres"
	billing "hydrospark/internal/billing/domain"
	billingpg "hydrospark/internal/billing/infrastructure/postgres"
	forecast "hydrospark/internal/forecast/domain"
	forecastpg "hydrospark/internal/forecast/infrastructure/postgres"
	rates "hydrospark/internal/rates/domain"
	ratespg "hydrospark/internal/rates/infrastructure/postgres"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
	usagepg "hydrospark/internal/usage/infrastructure/postgres"
)

// Factory opens read-committed transactions.
type Factory struct {
	db *sql.DB
}

var _ store.Factory = (*Factory)(nil)

// NewFactory constructs a factory over db.
func NewFactory(db *sql.DB) (*Factory, error) {
	if db == nil {
		return nil, errors.New("store factory: nil db")
	}
	return &Factory{db: db}, nil
}

// Begin starts a transaction.
func (f *Factory) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		tx:          tx,
		accounts:    usagepg.NewAccountRepository(tx),
		consumption: usagepg.NewConsumptionRepository(tx),
		rates:       ratespg.NewRuleRepository(tx),
		invoices:    billingpg.NewInvoiceRepository(tx),
		forecasts:   forecastpg.NewRepository(tx),
		alerts:      anomalypg.NewRepository(tx),
	}, nil
}

type unitOfWork struct {
	tx          *sql.Tx
	closed      bool
	accounts    *usagepg.AccountRepository
	consumption *usagepg.ConsumptionRepository
	rates       *ratespg.RuleRepository
	invoices    *billingpg.InvoiceRepository
	forecasts   *forecastpg.Repository
	alerts      *anomalypg.Repository
}

func (u *unitOfWork) Accounts() usage.AccountRepository        { return u.accounts }
func (u *unitOfWork) Consumption() usage.ConsumptionRepository { return u.consumption }
func (u *unitOfWork) Rates() rates.RuleRepository              { return u.rates }
func (u *unitOfWork) Invoices() billing.InvoiceRepository      { return u.invoices }
func (u *unitOfWork) Forecasts() forecast.Repository           { return u.forecasts }
func (u *unitOfWork) Alerts() anomaly.Repository               { return u.alerts }

func (u *unitOfWork) Commit() error {
	if u.closed {
		return store.ErrClosed
	}
	u.closed = true
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.tx.Rollback()
}
