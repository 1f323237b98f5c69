package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	anomaly "hydrospark/internal/anomaly/domain"
	"hydrospark/internal/anomaly/notify"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/outcome"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// Service runs detection in its own unit of work and notifies after commit.
type Service struct {
	engine   *Engine
	factory  store.Factory
	notifier notify.AlertNotifier
	lookback int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sets the notifier for newly created alerts.
func WithNotifier(notifier notify.AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithLookbackDays sets the detection window.
func WithLookbackDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.lookback = days
		}
	}
}

// NewService constructs the service.
func NewService(engine *Engine, factory store.Factory, opts ...ServiceOption) (*Service, error) {
	if engine == nil {
		return nil, errors.New("anomaly service: nil engine")
	}
	if factory == nil {
		return nil, errors.New("anomaly service: nil store factory")
	}
	s := &Service{engine: engine, factory: factory, lookback: anomaly.DefaultLookbackDays}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Detect runs one detection for an account.
func (s *Service) Detect(ctx context.Context, accountID string) (anomaly.Detection, error) {
	started := time.Now()
	var (
		detection anomaly.Detection
		account   *usage.Account
	)
	err := store.Run(ctx, s.factory, func(uow store.UnitOfWork) error {
		var err error
		account, err = uow.Accounts().Get(ctx, accountID)
		if err != nil {
			return fmt.Errorf("detect %s: %w", accountID, err)
		}
		detection, err = s.engine.Detect(ctx, uow, accountID, s.lookback)
		return err
	})
	result := metrics.ResultOf(err)
	if err == nil && detection.Status == outcome.StatusInsufficientData {
		result = metrics.ResultInsufficient
	}
	metrics.ObserveAnomalyRun(result, time.Since(started))
	if err != nil {
		return anomaly.Detection{}, err
	}

	if len(detection.Alerts) > 0 {
		s.engine.logger.Info("anomaly alerts created",
			zap.String("account_id", accountID),
			zap.Int("alerts", len(detection.Alerts)),
			zap.Int("flagged", detection.Flagged),
		)
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, *account, detection.Alerts); err != nil {
				s.engine.logger.Warn("anomaly notification failed", zap.String("account_id", accountID), zap.Error(err))
			}
		}
	}
	return detection, nil
}

// Summary aggregates a DetectAll run.
type Summary struct {
	Accounts     int
	Insufficient int
	Alerts       int
	Failed       int
}

// DetectAll runs detection for every account in order. Failures do not stop
// the run; they are returned joined after all accounts were attempted.
func (s *Service) DetectAll(ctx context.Context) (Summary, error) {
	var accounts []usage.Account
	err := store.Run(ctx, s.factory, func(uow store.UnitOfWork) error {
		var err error
		accounts, err = uow.Accounts().List(ctx)
		return err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("detect all: list accounts: %w", err)
	}

	var summary Summary
	var errs []error
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary.Accounts++
		detection, err := s.Detect(ctx, account.ID)
		if err != nil {
			summary.Failed++
			errs = append(errs, err)
			s.engine.logger.Error("anomaly detection failed", zap.String("account_id", account.ID), zap.Error(err))
			continue
		}
		if detection.Status == outcome.StatusInsufficientData {
			summary.Insufficient++
		}
		summary.Alerts += len(detection.Alerts)
	}
	return summary, errors.Join(errs...)
}
