package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	anomaly "hydrospark/internal/anomaly/domain"
)

func sampleAlert() *anomaly.Alert {
	return &anomaly.Alert{
		ID:           "a-1",
		AccountID:    "acc-1",
		Date:         time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
		Observed:     decimal.NewFromInt(40),
		Expected:     decimal.NewFromInt(10),
		DeviationPct: decimal.NewFromInt(300),
		RiskScore:    decimal.NewFromInt(100),
		Type:         anomaly.TypeSpike,
		Status:       anomaly.StatusNew,
		CreatedAt:    time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
	}
}
