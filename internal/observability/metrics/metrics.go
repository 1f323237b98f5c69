package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "hydrospark_"

	resultSuccess      = "success"
	resultError        = "error"
	resultInsufficient = "insufficient_data"
)

var (
	registerOnce sync.Once

	rateFallbackTotal *prometheus.CounterVec

	billCalculateTotal   *prometheus.CounterVec
	invoiceGenerateTotal *prometheus.CounterVec
	backfillTotal        *prometheus.CounterVec
	backfillLatency      *prometheus.HistogramVec
	backfillInvoices     *prometheus.CounterVec

	forecastRunTotal   *prometheus.CounterVec
	forecastRunLatency *prometheus.HistogramVec

	anomalyRunTotal   *prometheus.CounterVec
	anomalyRunLatency *prometheus.HistogramVec
	anomalyAlerts     *prometheus.CounterVec

	notifyTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		rateFallbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_fallback_total",
				Help: "Rate resolutions that fell back to the default price by account type",
			},
			[]string{"account_type"},
		)

		billCalculateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_calculate_total",
				Help: "Total bill calculations by result",
			},
			[]string{"result"},
		)
		invoiceGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_generate_total",
				Help: "Total invoice generations by result",
			},
			[]string{"result"},
		)
		backfillTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backfill_accounts_total",
				Help: "Total accounts backfilled by result",
			},
			[]string{"result"},
		)
		backfillLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "backfill_latency_seconds",
				Help:    "Backfill run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		backfillInvoices = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backfill_invoices_total",
				Help: "Backfill buckets by outcome",
			},
			[]string{"outcome"},
		)

		forecastRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "forecast_runs_total",
				Help: "Total forecast runs by result",
			},
			[]string{"result"},
		)
		forecastRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "forecast_run_latency_seconds",
				Help:    "Forecast run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		anomalyRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomaly_runs_total",
				Help: "Total anomaly detection runs by result",
			},
			[]string{"result"},
		)
		anomalyRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "anomaly_run_latency_seconds",
				Help:    "Anomaly detection latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		anomalyAlerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomaly_alerts_total",
				Help: "Total anomaly alerts created by type",
			},
			[]string{"type"},
		)

		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_notifications_total",
				Help: "Total alert notifications by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_export_total",
				Help: "Total invoice export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			rateFallbackTotal,
			billCalculateTotal,
			invoiceGenerateTotal,
			backfillTotal,
			backfillLatency,
			backfillInvoices,
			forecastRunTotal,
			forecastRunLatency,
			anomalyRunTotal,
			anomalyRunLatency,
			anomalyAlerts,
			notifyTotal,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncRateFallback counts a default-price resolution.
func IncRateFallback(accountType string) {
	if accountType == "" {
		accountType = "unknown"
	}
	if rateFallbackTotal != nil {
		rateFallbackTotal.WithLabelValues(accountType).Inc()
	}
}

// IncBillCalculate counts a bill calculation.
func IncBillCalculate(result string) {
	if result == "" {
		result = resultSuccess
	}
	if billCalculateTotal != nil {
		billCalculateTotal.WithLabelValues(result).Inc()
	}
}

// IncInvoiceGenerate counts an invoice generation.
func IncInvoiceGenerate(result string) {
	if result == "" {
		result = resultSuccess
	}
	if invoiceGenerateTotal != nil {
		invoiceGenerateTotal.WithLabelValues(result).Inc()
	}
}

// ObserveBackfill records backfill latency and result for one account.
func ObserveBackfill(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if backfillTotal != nil {
		backfillTotal.WithLabelValues(result).Inc()
	}
	if backfillLatency != nil {
		backfillLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddBackfillInvoices adds bucket outcomes (generated, skipped_existing, skipped_empty).
func AddBackfillInvoices(outcome string, count int) {
	if count <= 0 {
		return
	}
	if backfillInvoices != nil {
		backfillInvoices.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveForecastRun records forecast latency and result.
func ObserveForecastRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if forecastRunTotal != nil {
		forecastRunTotal.WithLabelValues(result).Inc()
	}
	if forecastRunLatency != nil {
		forecastRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveAnomalyRun records anomaly detection latency and result.
func ObserveAnomalyRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if anomalyRunTotal != nil {
		anomalyRunTotal.WithLabelValues(result).Inc()
	}
	if anomalyRunLatency != nil {
		anomalyRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncAnomalyAlert counts a created alert.
func IncAnomalyAlert(alertType string) {
	if alertType == "" {
		alertType = "unknown"
	}
	if anomalyAlerts != nil {
		anomalyAlerts.WithLabelValues(alertType).Inc()
	}
}

// IncNotify counts an alert notification attempt.
func IncNotify(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ResultOf maps an error to a result label.
func ResultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess      = resultSuccess
	ResultError        = resultError
	ResultInsufficient = resultInsufficient
)
