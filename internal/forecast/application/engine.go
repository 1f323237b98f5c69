package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	forecast "hydrospark/internal/forecast/domain"
	"hydrospark/internal/outcome"
	rateapp "hydrospark/internal/rates/application"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine fits the weighted recency model and writes forecast points.
type Engine struct {
	resolver *rateapp.Resolver
	clock    Clock
	logger   *zap.Logger
}

// NewEngine constructs the forecast engine.
func NewEngine(resolver *rateapp.Resolver, opts ...EngineOption) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("forecast engine: nil rate resolver")
	}
	e := &Engine{resolver: resolver, clock: SystemClock{}, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) history(ctx context.Context, uow store.UnitOfWork, accountID string) ([]usage.ConsumptionRecord, error) {
	today := usage.DayStart(e.clock.Now())
	records, err := uow.Consumption().ListRange(ctx, accountID, today.AddDate(0, 0, -forecast.HistoryDays), today)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: load history: %w", accountID, err)
	}
	return records, nil
}

// Generate replaces the account's forecast with horizonMonths*30 daily points.
// Short histories return StatusInsufficientData without writing. The caller commits.
func (e *Engine) Generate(ctx context.Context, uow store.UnitOfWork, accountID string, horizonMonths int) (forecast.Run, error) {
	if uow == nil {
		return forecast.Run{}, errors.New("forecast engine: nil unit of work")
	}
	if horizonMonths <= 0 {
		return forecast.Run{}, forecast.ErrInvalidHorizon
	}
	account, err := uow.Accounts().Get(ctx, accountID)
	if err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: %w", accountID, err)
	}
	records, err := e.history(ctx, uow, accountID)
	if err != nil {
		return forecast.Run{}, err
	}

	run := forecast.Run{AccountID: accountID, HorizonMonths: horizonMonths, Observations: len(records)}
	if len(records) < forecast.MinObservations {
		run.Status = outcome.StatusInsufficientData
		e.logger.Info("forecast skipped, insufficient history",
			zap.String("account_id", accountID), zap.Int("observations", len(records)))
		return run, nil
	}

	baseline, err := forecast.Baseline(usage.Quantities(records))
	if err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: %w", accountID, err)
	}
	last := records[len(records)-1].Date
	rate, err := e.resolver.Resolve(ctx, uow.Rates(), *account, last)
	if err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: %w", accountID, err)
	}
	monthly := decimal.NewFromFloat(baseline * forecast.DaysPerMonth).Round(usage.QuantityScale)
	price := rate.EffectiveUnitPrice(monthly)

	points := forecast.Project(accountID, last, baseline, horizonMonths*forecast.DaysPerMonth, price, e.clock.Now().UTC())
	for i := range points {
		points[i].ID = uuid.NewString()
	}

	replaced, err := uow.Forecasts().DeleteByAccount(ctx, accountID)
	if err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: delete previous points: %w", accountID, err)
	}
	if err := uow.Forecasts().InsertBatch(ctx, points); err != nil {
		return forecast.Run{}, fmt.Errorf("forecast %s: insert points: %w", accountID, err)
	}

	run.Status = outcome.StatusOK
	run.Baseline = baseline
	run.UnitPrice = price
	run.RateSource = rate.Source
	run.Points = points
	run.Replaced = replaced
	return run, nil
}

// EvaluateAccuracy backtests the model on the account's history without writing.
func (e *Engine) EvaluateAccuracy(ctx context.Context, uow store.UnitOfWork, accountID string) (forecast.Accuracy, error) {
	if uow == nil {
		return forecast.Accuracy{}, errors.New("forecast engine: nil unit of work")
	}
	if _, err := uow.Accounts().Get(ctx, accountID); err != nil {
		return forecast.Accuracy{}, fmt.Errorf("evaluate %s: %w", accountID, err)
	}
	records, err := e.history(ctx, uow, accountID)
	if err != nil {
		return forecast.Accuracy{}, err
	}
	result := forecast.Accuracy{AccountID: accountID}
	if len(records) < forecast.MinEvaluationObservations {
		result.Status = outcome.StatusInsufficientData
		return result, nil
	}
	mape, rmse, samples, err := forecast.Evaluate(usage.Quantities(records))
	if err != nil {
		return forecast.Accuracy{}, fmt.Errorf("evaluate %s: %w", accountID, err)
	}
	result.Status = outcome.StatusOK
	result.MAPE = mape
	result.RMSE = rmse
	result.Accuracy = 100 - mape
	result.TestSamples = samples
	return result, nil
}
