// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"stoq/internal/core/id"
	"stoq/internal/domain/params"
	"stoq/internal/infrastructure/storage/postgres"
	"stoq/pkg/logger"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	LogLevel    string
	DatabaseURL string
	Timezone    string
	MetricsAddr string

	OutboxBatchSize    int
	OutboxPollInterval time.Duration

	Params params.Parameters
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	defaults := params.Defaults()
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		Timezone:           valueOrDefault(k.String("TIMEZONE"), "UTC"),
		MetricsAddr:        valueOrDefault(k.String("METRICS_ADDR"), ":9102"),
		OutboxBatchSize:    parseInt(k.String("OUTBOX_BATCH_SIZE"), defaultBatchSize),
		OutboxPollInterval: parseDuration(k.String("OUTBOX_POLL_INTERVAL"), defaultPollInterval),
		Params: params.Parameters{
			DefaultSalesCFOP:               valueOrDefault(k.String("STOQ_DEFAULT_SALES_CFOP"), defaults.DefaultSalesCFOP),
			DefaultReturnSalesCFOP:         valueOrDefault(k.String("STOQ_DEFAULT_RETURN_SALES_CFOP"), defaults.DefaultReturnSalesCFOP),
			DefaultPaymentMethod:           valueOrDefault(k.String("STOQ_DEFAULT_PAYMENT_METHOD"), defaults.DefaultPaymentMethod),
			SalePayCommissionWhenConfirmed: parseBool(k.String("STOQ_SALE_PAY_COMMISSION_WHEN_CONFIRMED")),
			UseTradeAsDiscount:             parseBool(k.String("STOQ_USE_TRADE_AS_DISCOUNT")),
		},
	}

	account, err := id.ParseOptional(strings.TrimSpace(k.String("STOQ_IMBALANCE_ACCOUNT")))
	if err != nil {
		return nil, fmt.Errorf("STOQ_IMBALANCE_ACCOUNT: %w", err)
	}
	cfg.Params.ImbalanceAccountID = account

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// IsDevelopment reports whether the process runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "local"
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Development: c.IsDevelopment()}
}

// Pool returns the connection pool configuration.
func (c *Config) Pool() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.DatabaseURL)
	pc.Timezone = c.Timezone
	return pc
}

func valueOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
