package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"hydrospark/internal/outcome"
	rates "hydrospark/internal/rates/domain"
)

// ModelVersion tags points produced by the weighted recency model.
const ModelVersion = "weighted_recency_v1"

const (
	// HistoryDays is the look-back window used to fit the model.
	HistoryDays = 730
	// MinObservations is the minimum history needed to forecast.
	MinObservations = 30
	// DaysPerMonth converts a horizon in months to daily points.
	DaysPerMonth = 30
	// MinEvaluationObservations is the minimum history for a backtest.
	MinEvaluationObservations = 180
)

// Point is one forecast day.
type Point struct {
	ID                string
	AccountID         string
	Date              time.Time
	PredictedQuantity decimal.Decimal
	PredictedAmount   decimal.Decimal
	ConfidenceLower   decimal.Decimal
	ConfidenceUpper   decimal.Decimal
	ModelVersion      string
	CreatedAt         time.Time
}

// Run is the result of one forecast generation.
type Run struct {
	AccountID     string
	Status        outcome.Status
	Observations  int
	HorizonMonths int
	Baseline      float64
	UnitPrice     decimal.Decimal
	RateSource    rates.Source
	Points        []Point
	Replaced      int64
}

// Accuracy summarizes a hold-out backtest of the model.
type Accuracy struct {
	AccountID   string
	Status      outcome.Status
	MAPE        float64
	RMSE        float64
	Accuracy    float64
	TestSamples int
}
