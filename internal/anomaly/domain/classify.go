package anomaly

import "math"

const (
	// MinObservations is the minimum history needed to run detection.
	MinObservations = 14
	// DefaultLookbackDays applies when the caller passes a non-positive window.
	DefaultLookbackDays = 90
	// AlertThresholdPct is the absolute deviation above which a flagged day alerts.
	AlertThresholdPct = 50.0

	spikeStdDevs  = 2.0
	lowUsageRatio = 0.3
	maxRiskScore  = 100.0
)

// Stats holds the window statistics used to score a flagged day.
type Stats struct {
	Mean      float64
	SampleStd float64
}

// ComputeStats returns the mean and sample standard deviation.
func ComputeStats(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return Stats{Mean: mean}
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return Stats{Mean: mean, SampleStd: math.Sqrt(sq / float64(n-1))}
}

// DeviationPct is the relative deviation from mean in percent, 0 when mean is 0.
func DeviationPct(observed, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (observed - mean) / mean * 100
}

// RiskScore caps the absolute deviation at 100.
func RiskScore(deviationPct float64) float64 {
	return math.Min(maxRiskScore, math.Abs(deviationPct))
}

// Classify labels a flagged observation against window statistics.
func Classify(observed float64, stats Stats) Type {
	switch {
	case observed > stats.Mean+spikeStdDevs*stats.SampleStd:
		return TypeSpike
	case observed < lowUsageRatio*stats.Mean:
		return TypeUnusualPattern
	default:
		return TypeLeak
	}
}

// ShouldAlert reports whether a deviation is large enough to raise an alert.
func ShouldAlert(deviationPct float64) bool {
	return math.Abs(deviationPct) > AlertThresholdPct
}
