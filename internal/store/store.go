// Package store groups the repositories that one business operation
// reads and writes atomically.
package store

import (
	"context"
	"errors"

	anomaly "hydrospark/internal/anomaly/domain"
	billing "hydrospark/internal/billing/domain"
	forecast "hydrospark/internal/forecast/domain"
	rates "hydrospark/internal/rates/domain"
	usage "hydrospark/internal/usage/domain"
)

// ErrClosed is returned when a unit of work is used after Commit or Rollback.
var ErrClosed = errors.New("store: unit of work closed")

// UnitOfWork exposes repositories bound to one transaction.
type UnitOfWork interface {
	Accounts() usage.AccountRepository
	Consumption() usage.ConsumptionRepository
	Rates() rates.RuleRepository
	Invoices() billing.InvoiceRepository
	Forecasts() forecast.Repository
	Alerts() anomaly.Repository
	Commit() error
	Rollback() error
}

// Factory opens units of work.
type Factory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Run executes fn inside a unit of work, committing on success and rolling back on error.
func Run(ctx context.Context, factory Factory, fn func(UnitOfWork) error) error {
	uow, err := factory.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
