package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forecastapp "hydrospark/internal/forecast/application"
	forecast "hydrospark/internal/forecast/domain"
	"hydrospark/internal/outcome"
	rateapp "hydrospark/internal/rates/application"
	rates "hydrospark/internal/rates/domain"
	"hydrospark/internal/store/memory"
	usage "hydrospark/internal/usage/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var today = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, s *memory.Store) (*forecastapp.Service, *forecastapp.Engine) {
	t.Helper()
	resolver, err := rateapp.NewResolver(rateapp.DefaultUnitPrice)
	require.NoError(t, err)
	engine, err := forecastapp.NewEngine(resolver, forecastapp.WithClock(fixedClock{now: today}))
	require.NoError(t, err)
	svc, err := forecastapp.NewService(engine, s, nil)
	require.NoError(t, err)
	return svc, engine
}

func seed(t *testing.T, s *memory.Store, accountID string, days int, qty float64) {
	t.Helper()
	s.AddAccount(usage.Account{ID: accountID, Type: usage.AccountTypeResidential})
	var records []usage.ConsumptionRecord
	for i := days - 1; i >= 0; i-- {
		records = append(records, usage.ConsumptionRecord{
			AccountID: accountID,
			Date:      today.AddDate(0, 0, -i),
			Quantity:  decimal.NewFromFloat(qty),
		})
	}
	require.NoError(t, s.AddConsumption(records...))
}

func TestRegenerateSupersedesPreviousPoints(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 120, 10)
	svc, _ := newService(t, s)

	run, err := svc.Regenerate(ctx, "a1", 3)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusOK, run.Status)
	assert.Len(t, run.Points, 90)
	assert.Len(t, s.Forecasts("a1"), 90)

	run, err = svc.Regenerate(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(90), run.Replaced)

	points := s.Forecasts("a1")
	require.Len(t, points, 60)
	seen := make(map[time.Time]bool)
	for _, p := range points {
		assert.False(t, seen[p.Date], "duplicate date %s", p.Date)
		seen[p.Date] = true
		assert.Equal(t, forecast.ModelVersion, p.ModelVersion)
	}
	assert.Equal(t, today.AddDate(0, 0, 1), points[0].Date)
}

func TestGenerateUsesBaselineAndResolvedPrice(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 60, 10)
	_, err := s.UpsertRule(ctx, rates.Rule{
		AccountType:   usage.AccountTypeResidential,
		Mode:          rates.ModeFlat,
		FlatPrice:     decimal.RequireFromString("3.00"),
		EffectiveFrom: today.AddDate(-1, 0, 0),
		Active:        true,
	})
	require.NoError(t, err)
	_, engine := newService(t, s)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	run, err := engine.Generate(ctx, uow, "a1", 1)
	require.NoError(t, err)
	assert.InDelta(t, 10, run.Baseline, 1e-9)
	assert.Equal(t, rates.SourceRule, run.RateSource)
	assert.True(t, run.UnitPrice.Equal(decimal.RequireFromString("3")))
	for _, p := range run.Points {
		assert.True(t, p.PredictedAmount.Equal(p.PredictedQuantity.Mul(run.UnitPrice).Round(2)))
	}
}

func TestRegenerateInsufficientDataWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 29, 10)
	svc, _ := newService(t, s)

	run, err := svc.Regenerate(ctx, "a1", 3)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusInsufficientData, run.Status)
	assert.Equal(t, 29, run.Observations)
	assert.Empty(t, run.Points)
	assert.Empty(t, s.Forecasts("a1"))
}

func TestGenerateRejectsNonPositiveHorizon(t *testing.T) {
	s := memory.NewStore()
	seed(t, s, "a1", 60, 10)
	svc, _ := newService(t, s)
	_, err := svc.Regenerate(context.Background(), "a1", 0)
	assert.ErrorIs(t, err, forecast.ErrInvalidHorizon)
}

func TestHistoryIsLimitedToTwoYears(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 900, 10)
	svc, _ := newService(t, s)

	run, err := svc.Regenerate(ctx, "a1", 1)
	require.NoError(t, err)
	assert.Equal(t, forecast.HistoryDays+1, run.Observations)
}

func TestEvaluateAccuracy(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 200, 10)
	seed(t, s, "short", 100, 10)
	svc, _ := newService(t, s)

	acc, err := svc.Evaluate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusOK, acc.Status)
	assert.Equal(t, 40, acc.TestSamples)
	assert.InDelta(t, 100-acc.MAPE, acc.Accuracy, 1e-9)
	assert.Greater(t, acc.Accuracy, 90.0)

	acc, err = svc.Evaluate(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusInsufficientData, acc.Status)
	assert.Empty(t, s.Forecasts("a1"))
}

func TestRegenerateAllCountsOutcomes(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "a1", 60, 10)
	seed(t, s, "a2", 10, 10)
	svc, _ := newService(t, s)

	summary, err := svc.RegenerateAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, forecastapp.Summary{Accounts: 2, Insufficient: 1, Points: 30}, summary)
	assert.Len(t, s.Forecasts("a1"), 30)
	assert.Empty(t, s.Forecasts("a2"))
}
