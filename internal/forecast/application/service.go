package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	forecast "hydrospark/internal/forecast/domain"
	"hydrospark/internal/forecast/infrastructure/lock"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/outcome"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// Locker serializes work per account.
type Locker interface {
	Acquire(ctx context.Context, accountID string) (lock.Release, error)
}

// Service runs forecast regeneration under a per-account lock, one unit of work per run.
type Service struct {
	engine  *Engine
	factory store.Factory
	locker  Locker
}

// NewService constructs the service. A nil locker falls back to an in-process keyed mutex.
func NewService(engine *Engine, factory store.Factory, locker Locker) (*Service, error) {
	if engine == nil {
		return nil, errors.New("forecast service: nil engine")
	}
	if factory == nil {
		return nil, errors.New("forecast service: nil store factory")
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{engine: engine, factory: factory, locker: locker}, nil
}

// Regenerate supersedes the account's forecast.
func (s *Service) Regenerate(ctx context.Context, accountID string, horizonMonths int) (forecast.Run, error) {
	started := time.Now()
	run, err := s.regenerate(ctx, accountID, horizonMonths)
	result := metrics.ResultOf(err)
	if err == nil && run.Status == outcome.StatusInsufficientData {
		result = metrics.ResultInsufficient
	}
	metrics.ObserveForecastRun(result, time.Since(started))
	return run, err
}

func (s *Service) regenerate(ctx context.Context, accountID string, horizonMonths int) (forecast.Run, error) {
	release, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: acquire lock: %w", accountID, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.engine.logger.Warn("forecast lock release failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}()

	var run forecast.Run
	err = store.Run(ctx, s.factory, func(uow store.UnitOfWork) error {
		var err error
		run, err = s.engine.Generate(ctx, uow, accountID, horizonMonths)
		return err
	})
	if err != nil {
		return forecast.Run{}, err
	}
	if run.Status.OK() {
		s.engine.logger.Info("forecast regenerated",
			zap.String("account_id", accountID),
			zap.Int("points", len(run.Points)),
			zap.Int64("replaced", run.Replaced),
			zap.Float64("baseline", run.Baseline),
		)
	}
	return run, nil
}

// Evaluate backtests the model for an account.
func (s *Service) Evaluate(ctx context.Context, accountID string) (forecast.Accuracy, error) {
	var result forecast.Accuracy
	err := store.Run(ctx, s.factory, func(uow store.UnitOfWork) error {
		var err error
		result, err = s.engine.EvaluateAccuracy(ctx, uow, accountID)
		return err
	})
	return result, err
}

// Summary aggregates a RegenerateAll run.
type Summary struct {
	Accounts     int
	Insufficient int
	Points       int
	Failed       int
}

// RegenerateAll refreshes every account's forecast, continuing past failures.
func (s *Service) RegenerateAll(ctx context.Context, horizonMonths int) (Summary, error) {
	var accounts []usage.Account
	err := store.Run(ctx, s.factory, func(uow store.UnitOfWork) error {
		var err error
		accounts, err = uow.Accounts().List(ctx)
		return err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("forecast all: list accounts: %w", err)
	}

	var summary Summary
	var errs []error
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary.Accounts++
		run, err := s.Regenerate(ctx, account.ID, horizonMonths)
		if err != nil {
			summary.Failed++
			errs = append(errs, err)
			s.engine.logger.Error("forecast regeneration failed", zap.String("account_id", account.ID), zap.Error(err))
			continue
		}
		if run.Status == outcome.StatusInsufficientData {
			summary.Insufficient++
		}
		summary.Points += len(run.Points)
	}
	return summary, errors.Join(errs...)
}
