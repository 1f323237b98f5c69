package forecast_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forecast "hydrospark/internal/forecast/domain"
)

func constant(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}

func TestBaselineWeightsRecentHistory(t *testing.T) {
	values := append(constant(60, 10), constant(30, 20)...)
	baseline, err := forecast.Baseline(values)
	require.NoError(t, err)
	// mean30=20, mean90=13.333, meanAll=13.333
	assert.InDelta(t, 0.5*20+0.3*(40.0/3)+0.2*(40.0/3), baseline, 1e-9)
}

func TestBaselineShortHistoryUsesRecentMeanForQuarter(t *testing.T) {
	values := append(constant(20, 5), constant(30, 15)...)
	baseline, err := forecast.Baseline(values)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*15+0.3*15+0.2*11, baseline, 1e-9)
}

func TestBaselineEmpty(t *testing.T) {
	_, err := forecast.Baseline(nil)
	assert.ErrorIs(t, err, forecast.ErrEmptyHistory)
}

func TestProjectBuildsBoundedPoints(t *testing.T) {
	last := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	points := forecast.Project("a1", last, 10, 60, decimal.RequireFromString("2.5"), last)
	require.Len(t, points, 60)

	first := points[0]
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), first.Date)
	expected := 10 * (1 + 0.1*math.Sin(2*math.Pi/365))
	assert.InDelta(t, expected, first.PredictedQuantity.InexactFloat64(), 0.005)
	assert.Equal(t, forecast.ModelVersion, first.ModelVersion)

	for _, p := range points {
		assert.True(t, p.ConfidenceLower.LessThanOrEqual(p.PredictedQuantity))
		assert.True(t, p.ConfidenceUpper.GreaterThanOrEqual(p.PredictedQuantity))
		assert.False(t, p.ConfidenceLower.IsNegative())
		assert.True(t, p.PredictedAmount.Equal(p.PredictedQuantity.Mul(decimal.RequireFromString("2.5")).Round(2)))
	}
}

func TestEvaluateOnConstantSeries(t *testing.T) {
	mape, rmse, samples, err := forecast.Evaluate(constant(200, 10))
	require.NoError(t, err)
	assert.Equal(t, 40, samples)
	// error comes only from the seasonal term
	assert.Less(t, mape, 10.0)
	assert.Less(t, rmse, 1.0)
}

func TestEvaluateSkipsZeroActualsInMAPE(t *testing.T) {
	values := constant(200, 10)
	for i := 160; i < 200; i++ {
		values[i] = 0
	}
	mape, rmse, _, err := forecast.Evaluate(values)
	require.NoError(t, err)
	assert.Zero(t, mape)
	assert.Greater(t, rmse, 9.0)
}
