package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	anomalyapp "hydrospark/internal/anomaly/application"
	"hydrospark/internal/anomaly/notify"
	billingapp "hydrospark/internal/billing/application"
	"hydrospark/internal/billing/interfaces/export"
	forecastapp "hydrospark/internal/forecast/application"
	"hydrospark/internal/forecast/infrastructure/lock"
	"hydrospark/internal/jobs"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/platform/config"
	"hydrospark/internal/platform/database"
	"hydrospark/internal/platform/logger"
	rateapp "hydrospark/internal/rates/application"
	pgstore "hydrospark/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	name := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		name, args = args[0], args[1:]
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q; available: %s", name, commandNames())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd(ctx, a, args)
}

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	factory    *pgstore.Factory
	billing    *billingapp.Engine
	backfiller *billingapp.Backfiller
	forecasts  *forecastapp.Service
	anomalies  *anomalyapp.Service
	exporter   *export.Exporter
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, db: db}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	metrics.Init(a.db, a.logger)

	factory, err := pgstore.NewFactory(a.db)
	if err != nil {
		return err
	}
	a.factory = factory

	resolver, err := rateapp.NewResolver(a.cfg.Billing.DefaultUnitPrice, rateapp.WithLogger(a.logger))
	if err != nil {
		return err
	}

	a.billing, err = billingapp.NewEngine(resolver,
		billingapp.WithDueDays(a.cfg.Billing.DueDays),
		billingapp.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if a.backfiller, err = billingapp.NewBackfiller(a.billing, factory); err != nil {
		return err
	}

	forecastEngine, err := forecastapp.NewEngine(resolver, forecastapp.WithLogger(a.logger))
	if err != nil {
		return err
	}
	var locker forecastapp.Locker
	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		redisLocker, err := lock.NewRedisLocker(a.redis, lock.WithTTL(a.cfg.Forecast.LockTTL))
		if err != nil {
			return err
		}
		locker = redisLocker
	}
	if a.forecasts, err = forecastapp.NewService(forecastEngine, factory, locker); err != nil {
		return err
	}

	anomalyOpts := []anomalyapp.ServiceOption{anomalyapp.WithLookbackDays(a.cfg.Anomaly.LookbackDays)}
	if a.cfg.Anomaly.WebhookURL != "" {
		notifier, err := a.webhookNotifier()
		if err != nil {
			return err
		}
		anomalyOpts = append(anomalyOpts, anomalyapp.WithNotifier(notifier))
	}
	anomalyEngine := anomalyapp.NewEngine(anomalyapp.WithLogger(a.logger))
	if a.anomalies, err = anomalyapp.NewService(anomalyEngine, factory, anomalyOpts...); err != nil {
		return err
	}

	a.exporter, err = export.NewExporter(factory, a.cfg.Billing.Currency)
	return err
}

func (a *app) webhookNotifier() (*notify.Notifier, error) {
	channel, err := notify.NewWebhookChannel(a.cfg.Anomaly.WebhookURL, notify.WithTimeout(a.cfg.Anomaly.NotifyTimeout))
	if err != nil {
		return nil, err
	}
	tpl, err := notify.NewTemplate(a.cfg.Anomaly.NotifyTemplate)
	if err != nil {
		return nil, fmt.Errorf("anomaly.notify_template: %w", err)
	}
	return notify.NewNotifier(channel, tpl, notify.WithDedupeWindow(a.cfg.Anomaly.DedupeWindow))
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Schedule.Enabled {
		scheduler, err := jobs.NewScheduler(a.cfg.Schedule.DailyAt, a.logger, a.dailyJobs()...)
		if err != nil {
			return err
		}
		go scheduler.Start(ctx)
		a.logger.Info("scheduler started", zap.String("daily_at", a.cfg.Schedule.DailyAt))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(pingCtx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           loggingMiddleware(mux, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", zap.String("addr", a.cfg.HTTP.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func (a *app) dailyJobs() []jobs.Job {
	return []jobs.Job{
		{Name: "backfill", Run: func(ctx context.Context) error {
			report, err := a.backfiller.BackfillAll(ctx)
			a.logger.Info("backfill finished",
				zap.Int("accounts", report.Accounts),
				zap.Int("generated", report.Generated),
				zap.Int("skipped_existing", report.SkippedExisting),
			)
			return err
		}},
		{Name: "forecast", Run: func(ctx context.Context) error {
			summary, err := a.forecasts.RegenerateAll(ctx, a.cfg.Forecast.HorizonMonths)
			a.logger.Info("forecast refresh finished",
				zap.Int("accounts", summary.Accounts),
				zap.Int("insufficient", summary.Insufficient),
				zap.Int("failed", summary.Failed),
			)
			return err
		}},
		{Name: "detect", Run: func(ctx context.Context) error {
			summary, err := a.anomalies.DetectAll(ctx)
			a.logger.Info("anomaly detection finished",
				zap.Int("accounts", summary.Accounts),
				zap.Int("alerts", summary.Alerts),
				zap.Int("failed", summary.Failed),
			)
			return err
		}},
	}
}

func loggingMiddleware(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
