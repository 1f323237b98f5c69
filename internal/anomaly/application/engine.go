package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hydrospark/internal/anomaly/detector"
	anomaly "hydrospark/internal/anomaly/domain"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/outcome"
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

// WithDetectorConfig overrides the isolation forest settings.
func WithDetectorConfig(cfg detector.Config) EngineOption {
	return func(e *Engine) {
		e.forest = cfg
	}
}

// Engine flags outlying consumption days and records alerts.
type Engine struct {
	clock  Clock
	logger *zap.Logger
	forest detector.Config
}

// NewEngine constructs the anomaly engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{clock: SystemClock{}, logger: zap.NewNop(), forest: detector.DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Detect scores the last lookbackDays of consumption and inserts alerts for
// flagged days whose deviation exceeds the threshold. Days that already carry
// an alert are skipped. The caller commits.
func (e *Engine) Detect(ctx context.Context, uow store.UnitOfWork, accountID string, lookbackDays int) (anomaly.Detection, error) {
	if uow == nil {
		return anomaly.Detection{}, errors.New("anomaly engine: nil unit of work")
	}
	if lookbackDays <= 0 {
		lookbackDays = anomaly.DefaultLookbackDays
	}
	if _, err := uow.Accounts().Get(ctx, accountID); err != nil {
		return anomaly.Detection{}, fmt.Errorf("detect %s: %w", accountID, err)
	}
	today := usage.DayStart(e.clock.Now())
	records, err := uow.Consumption().ListRange(ctx, accountID, today.AddDate(0, 0, -lookbackDays), today)
	if err != nil {
		return anomaly.Detection{}, fmt.Errorf("detect %s: load history: %w", accountID, err)
	}

	result := anomaly.Detection{AccountID: accountID, Observations: len(records)}
	if len(records) < anomaly.MinObservations {
		result.Status = outcome.StatusInsufficientData
		return result, nil
	}

	values := usage.Quantities(records)
	forest, err := detector.Fit(detector.Standardize(values), e.forest)
	if err != nil {
		return anomaly.Detection{}, fmt.Errorf("detect %s: %w", accountID, err)
	}
	flags := forest.Outliers(detector.Standardize(values))
	stats := anomaly.ComputeStats(values)
	expected := decimal.NewFromFloat(stats.Mean).Round(usage.QuantityScale)
	now := e.clock.Now().UTC()

	for i, flagged := range flags {
		if !flagged {
			continue
		}
		result.Flagged++
		observed := values[i]
		deviation := anomaly.DeviationPct(observed, stats.Mean)
		if !anomaly.ShouldAlert(deviation) {
			continue
		}
		record := records[i]
		exists, err := uow.Alerts().ExistsForDay(ctx, accountID, record.Date)
		if err != nil {
			return anomaly.Detection{}, fmt.Errorf("detect %s: %w", accountID, err)
		}
		if exists {
			result.Duplicates++
			continue
		}
		alert := anomaly.Alert{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Date:         record.Date,
			Observed:     record.Quantity,
			Expected:     expected,
			DeviationPct: decimal.NewFromFloat(deviation).Round(2),
			RiskScore:    decimal.NewFromFloat(anomaly.RiskScore(deviation)).Round(2),
			Type:         anomaly.Classify(observed, stats),
			Status:       anomaly.StatusNew,
			CreatedAt:    now,
		}
		if err := uow.Alerts().Insert(ctx, &alert); err != nil {
			return anomaly.Detection{}, fmt.Errorf("detect %s: insert alert: %w", accountID, err)
		}
		metrics.IncAnomalyAlert(string(alert.Type))
		result.Alerts = append(result.Alerts, alert)
	}
	result.Status = outcome.StatusOK
	return result, nil
}
