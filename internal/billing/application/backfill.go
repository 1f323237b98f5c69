package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billing "hydrospark/internal/billing/domain"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// BackfillReport counts what one backfill run did.
type BackfillReport struct {
	Accounts        int
	Generated       int
	SkippedExisting int
	SkippedEmpty    int
}

func (r *BackfillReport) add(other BackfillReport) {
	r.Accounts += other.Accounts
	r.Generated += other.Generated
	r.SkippedExisting += other.SkippedExisting
	r.SkippedEmpty += other.SkippedEmpty
}

// Backfiller issues missing historical invoices, one unit of work per account.
type Backfiller struct {
	engine  *Engine
	factory store.Factory
}

// NewBackfiller constructs a backfiller.
func NewBackfiller(engine *Engine, factory store.Factory) (*Backfiller, error) {
	if engine == nil {
		return nil, errors.New("backfiller: nil engine")
	}
	if factory == nil {
		return nil, errors.New("backfiller: nil store factory")
	}
	return &Backfiller{engine: engine, factory: factory}, nil
}

// BackfillHistory walks accounts in order. Each account commits on its own, so
// a failure leaves earlier accounts committed and returns the partial report.
func (b *Backfiller) BackfillHistory(ctx context.Context, accountIDs []string) (BackfillReport, error) {
	var report BackfillReport
	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		started := time.Now()
		var accountReport BackfillReport
		err := store.Run(ctx, b.factory, func(uow store.UnitOfWork) error {
			var err error
			accountReport, err = b.engine.backfillAccount(ctx, uow, accountID)
			return err
		})
		metrics.ObserveBackfill(metrics.ResultOf(err), time.Since(started))
		if err != nil {
			b.engine.logger.Error("backfill account failed", zap.String("account_id", accountID), zap.Error(err))
			return report, fmt.Errorf("backfill %s: %w", accountID, err)
		}
		report.add(accountReport)
		metrics.AddBackfillInvoices("generated", accountReport.Generated)
		metrics.AddBackfillInvoices("skipped_existing", accountReport.SkippedExisting)
		metrics.AddBackfillInvoices("skipped_empty", accountReport.SkippedEmpty)
	}
	b.engine.logger.Info("backfill finished",
		zap.Int("accounts", report.Accounts),
		zap.Int("generated", report.Generated),
		zap.Int("skipped_existing", report.SkippedExisting),
		zap.Int("skipped_empty", report.SkippedEmpty),
	)
	return report, nil
}

// BackfillAll backfills every account in the store.
func (b *Backfiller) BackfillAll(ctx context.Context) (BackfillReport, error) {
	var ids []string
	err := store.Run(ctx, b.factory, func(uow store.UnitOfWork) error {
		accounts, err := uow.Accounts().List(ctx)
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(accounts))
		for _, account := range accounts {
			ids = append(ids, account.ID)
		}
		return nil
	})
	if err != nil {
		return BackfillReport{}, fmt.Errorf("backfill: list accounts: %w", err)
	}
	return b.BackfillHistory(ctx, ids)
}

func (e *Engine) backfillAccount(ctx context.Context, uow store.UnitOfWork, accountID string) (BackfillReport, error) {
	report := BackfillReport{Accounts: 1}
	account, err := uow.Accounts().Get(ctx, accountID)
	if err != nil {
		return report, err
	}
	span, ok, err := uow.Consumption().Span(ctx, accountID)
	if err != nil {
		return report, fmt.Errorf("consumption span: %w", err)
	}
	if !ok {
		return report, nil
	}

	today := usage.DayStart(e.clock.Now())
	for _, bucket := range billing.MonthlyBuckets(span.First, span.Last) {
		exists, err := uow.Invoices().Exists(ctx, accountID, bucket.Start, bucket.End)
		if err != nil {
			return report, fmt.Errorf("invoice exists %s: %w", bucket.Start.Format(time.DateOnly), err)
		}
		if exists {
			report.SkippedExisting++
			continue
		}
		totals, err := uow.Consumption().SumRange(ctx, accountID, bucket.Start, bucket.End)
		if err != nil {
			return report, fmt.Errorf("sum consumption %s: %w", bucket.Start.Format(time.DateOnly), err)
		}
		if !totals.Quantity.IsPositive() {
			report.SkippedEmpty++
			continue
		}
		calc, err := e.price(ctx, uow, *account, bucket, totals)
		if err != nil {
			return report, err
		}
		status := billing.HistoricalStatus(bucket.End, e.dueDate(bucket.End), today)
		invoice := e.newInvoice(calc, status)
		if err := uow.Invoices().Insert(ctx, invoice); err != nil {
			return report, fmt.Errorf("insert invoice %s: %w", bucket.Start.Format(time.DateOnly), err)
		}
		report.Generated++
	}
	return report, nil
}
