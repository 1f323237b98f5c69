// Package config loads process configuration.
//
// Priority (highest to lowest):
//  1. Environment variables with HYDROSPARK_ prefix (e.g. HYDROSPARK_DATABASE_URL)
//  2. config.yaml in the working directory or /etc/hydrospark
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"hydrospark/internal/platform/logger"
)

// Config is the full process configuration.
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Log      logger.Config
	Billing  BillingConfig
	Forecast ForecastConfig
	Anomaly  AnomalyConfig
	Redis    RedisConfig
	Schedule ScheduleConfig
	Rates    RatesConfig
}

type DatabaseConfig struct {
	URL string
}

type HTTPConfig struct {
	Addr string
}

type BillingConfig struct {
	DefaultUnitPrice decimal.Decimal
	DueDays          int
	Currency         string
}

type ForecastConfig struct {
	HorizonMonths int
	LockTTL       time.Duration
}

type AnomalyConfig struct {
	LookbackDays   int
	WebhookURL     string
	NotifyTemplate string
	NotifyTimeout  time.Duration
	DedupeWindow   time.Duration
}

// RedisConfig enables the distributed forecast lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ScheduleConfig struct {
	Enabled bool
	DailyAt string
}

type RatesConfig struct {
	CatalogPath string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("billing.default_unit_price", "2.50")
	v.SetDefault("billing.due_days", 15)
	v.SetDefault("billing.currency", "USD")
	v.SetDefault("forecast.horizon_months", 3)
	v.SetDefault("forecast.lock_ttl", "30s")
	v.SetDefault("anomaly.lookback_days", 90)
	v.SetDefault("anomaly.notify_timeout", "5s")
	v.SetDefault("anomaly.dedupe_window", "0s")
	v.SetDefault("redis.db", 0)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.daily_at", "02:00")
}

// Load reads configuration from the default locations.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hydrospark")
	return load(v)
}

// LoadFile reads configuration from an explicit file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	v.SetEnvPrefix("HYDROSPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	price, err := decimal.NewFromString(v.GetString("billing.default_unit_price"))
	if err != nil {
		return nil, fmt.Errorf("config: billing.default_unit_price: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		HTTP:     HTTPConfig{Addr: v.GetString("http.addr")},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Billing: BillingConfig{
			DefaultUnitPrice: price,
			DueDays:          v.GetInt("billing.due_days"),
			Currency:         v.GetString("billing.currency"),
		},
		Forecast: ForecastConfig{
			HorizonMonths: v.GetInt("forecast.horizon_months"),
			LockTTL:       v.GetDuration("forecast.lock_ttl"),
		},
		Anomaly: AnomalyConfig{
			LookbackDays:   v.GetInt("anomaly.lookback_days"),
			WebhookURL:     v.GetString("anomaly.webhook_url"),
			NotifyTemplate: v.GetString("anomaly.notify_template"),
			NotifyTimeout:  v.GetDuration("anomaly.notify_timeout"),
			DedupeWindow:   v.GetDuration("anomaly.dedupe_window"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Schedule: ScheduleConfig{
			Enabled: v.GetBool("schedule.enabled"),
			DailyAt: v.GetString("schedule.daily_at"),
		},
		Rates: RatesConfig{CatalogPath: v.GetString("rates.catalog_path")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Billing.DefaultUnitPrice.IsNegative() {
		return errors.New("config: billing.default_unit_price must not be negative")
	}
	if c.Billing.DueDays < 0 {
		return errors.New("config: billing.due_days must not be negative")
	}
	if c.Forecast.HorizonMonths <= 0 {
		return errors.New("config: forecast.horizon_months must be positive")
	}
	if c.Anomaly.LookbackDays <= 0 {
		return errors.New("config: anomaly.lookback_days must be positive")
	}
	if _, err := time.Parse("15:04", c.Schedule.DailyAt); err != nil {
		return fmt.Errorf("config: schedule.daily_at: %w", err)
	}
	return nil
}
