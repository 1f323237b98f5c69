package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const dbGaugeTimeout = 2 * time.Second

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prometheus.MustRegister(
		countGauge(db, logger, "accounts", "Number of accounts", `SELECT COUNT(*) FROM accounts`),
		countGauge(db, logger, "invoices_overdue", "Number of overdue invoices", `SELECT COUNT(*) FROM invoices WHERE status = 'overdue'`),
		countGauge(db, logger, "anomaly_alerts_open", "Number of unresolved anomaly alerts", `SELECT COUNT(*) FROM anomaly_alerts WHERE status <> 'resolved'`),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		}, func() float64 {
			return float64(db.Stats().OpenConnections)
		}),
	)
}

func countGauge(db *sql.DB, logger *zap.Logger, name, help, query string) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: metricPrefix + name,
		Help: help,
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), dbGaugeTimeout)
		defer cancel()
		var count int64
		if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			logger.Warn("metrics gauge query failed", zap.String("gauge", name), zap.Error(err))
			return 0
		}
		return float64(count)
	})
}
