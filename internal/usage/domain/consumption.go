package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places persisted for quantities.
const QuantityScale = 2

// ConsumptionRecord is one metered day for an account.
// The store guarantees at most one record per (account, date).
type ConsumptionRecord struct {
	AccountID string
	Date      time.Time
	Quantity  decimal.Decimal
	Estimated bool
}

// Validate checks record invariants.
func (r ConsumptionRecord) Validate() error {
	if r.AccountID == "" {
		return ErrEmptyAccountID
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if r.Quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	return nil
}

// Span is the inclusive range of observed consumption dates.
type Span struct {
	First time.Time
	Last  time.Time
}

// Totals is the aggregate of a consumption range.
type Totals struct {
	Quantity  decimal.Decimal
	Records   int
	Estimated bool
}

// TotalsOf aggregates records in memory.
func TotalsOf(records []ConsumptionRecord) Totals {
	return Totals{
		Quantity:  Total(records),
		Records:   len(records),
		Estimated: AnyEstimated(records),
	}
}

// Total sums record quantities.
func Total(records []ConsumptionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Quantity)
	}
	return total
}

// AnyEstimated reports whether at least one record was estimated.
func AnyEstimated(records []ConsumptionRecord) bool {
	for _, record := range records {
		if record.Estimated {
			return true
		}
	}
	return false
}

// Quantities returns the record quantities as floats for statistics.
func Quantities(records []ConsumptionRecord) []float64 {
	values := make([]float64, len(records))
	for i, record := range records {
		values[i] = record.Quantity.InexactFloat64()
	}
	return values
}
