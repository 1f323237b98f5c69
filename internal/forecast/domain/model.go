package forecast

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	weightRecent   = 0.5
	weightQuarter  = 0.3
	weightLongTerm = 0.2

	seasonalAmplitude = 0.1
	confidenceBand    = 0.2
)

// Baseline blends the 30-day, 90-day and full-history means.
// With fewer than 90 points the 90-day term uses the 30-day mean.
func Baseline(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyHistory
	}
	recent := mean(tail(values, 30))
	quarter := recent
	if len(values) >= 90 {
		quarter = mean(tail(values, 90))
	}
	all := mean(values)
	return weightRecent*recent + weightQuarter*quarter + weightLongTerm*all, nil
}

// SeasonalQuantity projects baseline for the d-th day after the last observation.
func SeasonalQuantity(baseline float64, d int) float64 {
	return baseline * (1 + seasonalAmplitude*math.Sin(2*math.Pi*float64(d)/365))
}

// Project builds daily points after last. Quantities and amounts keep 2 decimals.
func Project(accountID string, last time.Time, baseline float64, days int, price decimal.Decimal, createdAt time.Time) []Point {
	points := make([]Point, 0, days)
	band := decimal.NewFromFloat(confidenceBand)
	for d := 1; d <= days; d++ {
		qty := decimal.NewFromFloat(SeasonalQuantity(baseline, d)).Round(2)
		if qty.IsNegative() {
			qty = decimal.Zero
		}
		spread := qty.Mul(band)
		lower := qty.Sub(spread).Round(2)
		if lower.IsNegative() {
			lower = decimal.Zero
		}
		points = append(points, Point{
			AccountID:         accountID,
			Date:              last.AddDate(0, 0, d),
			PredictedQuantity: qty,
			PredictedAmount:   qty.Mul(price).Round(2),
			ConfidenceLower:   lower,
			ConfidenceUpper:   qty.Add(spread).Round(2),
			ModelVersion:      ModelVersion,
			CreatedAt:         createdAt,
		})
	}
	return points
}

// Evaluate backtests the model on an 80/20 split of values.
// Zero actuals are excluded from MAPE.
func Evaluate(values []float64) (mape, rmse float64, samples int, err error) {
	split := int(float64(len(values)) * 0.8)
	train, test := values[:split], values[split:]
	baseline, err := Baseline(train)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(test) == 0 {
		return 0, 0, 0, ErrEmptyHistory
	}
	var sqErr, pctErr float64
	var pctCount int
	for i, actual := range test {
		predicted := SeasonalQuantity(baseline, i+1)
		diff := actual - predicted
		sqErr += diff * diff
		if actual != 0 {
			pctErr += math.Abs(diff / actual)
			pctCount++
		}
	}
	rmse = math.Sqrt(sqErr / float64(len(test)))
	if pctCount > 0 {
		mape = pctErr / float64(pctCount) * 100
	}
	return mape, rmse, len(test), nil
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
