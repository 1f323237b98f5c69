package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates consumption over a calendar range.
type Summary struct {
	AccountID    string
	From         time.Time
	To           time.Time
	Total        decimal.Decimal
	AverageDaily decimal.Decimal
	MaxDaily     decimal.Decimal
	Days         int
	Observations int
}

// Summarize builds a Summary from records already filtered to [from, to].
// The average is taken over observed days, Days counts calendar days.
func Summarize(accountID string, from, to time.Time, records []ConsumptionRecord) Summary {
	summary := Summary{
		AccountID:    accountID,
		From:         DayStart(from),
		To:           DayStart(to),
		Total:        decimal.Zero,
		AverageDaily: decimal.Zero,
		MaxDaily:     decimal.Zero,
		Days:         DaysInclusive(from, to),
		Observations: len(records),
	}
	if len(records) == 0 {
		return summary
	}
	summary.Total = Total(records).Round(QuantityScale)
	for _, record := range records {
		if record.Quantity.GreaterThan(summary.MaxDaily) {
			summary.MaxDaily = record.Quantity
		}
	}
	summary.AverageDaily = summary.Total.Div(decimal.NewFromInt(int64(len(records)))).Round(QuantityScale)
	return summary
}
