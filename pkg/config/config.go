// Package config loads mosaic's configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultUserID is the identity used by the CLI when MOSAIC_USER_ID is unset.
const DefaultUserID = "00000000-0000-0000-0000-000000000001"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	UserID    string
	SessionID string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Redis
	RedisURL        string
	RankingCacheTTL time.Duration

	// RabbitMQ
	RabbitMQURL      string
	RabbitMQExchange string

	// Outbox
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	// OutboxProcessorEnabled lets a worker run health and metrics only.
	OutboxProcessorEnabled bool
	OutboxMaxLag           time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxStatsInterval    time.Duration

	// Worker
	WorkerHealthAddr string

	// Billing
	PaymentProvider        string
	StripeSecretKey        string
	StripeWebhookSecret    string
	PaymentBreakerFailures int
	PaymentBreakerTimeout  time.Duration
	LapseGracePeriod       time.Duration

	// Analytics
	AnalyticsWindowDays int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
		UserID:    getEnv("MOSAIC_USER_ID", DefaultUserID),
		SessionID: getEnv("MOSAIC_SESSION_ID", ""),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseDriver: getEnv("DATABASE_DRIVER", ""),
		SQLitePath:     getEnv("SQLITE_PATH", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		RankingCacheTTL: getDurationEnv("RANKING_CACHE_TTL", 10*time.Minute),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "mosaic.domain.events"),

		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:   getIntEnv("OUTBOX_MAX_RETRIES", 5),

		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),
		OutboxMaxLag:           getDurationEnv("OUTBOX_MAX_LAG", 5*time.Minute),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 7),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", time.Minute),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		PaymentProvider:        getEnv("PAYMENT_PROVIDER", "local"),
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PaymentBreakerFailures: getIntEnv("PAYMENT_BREAKER_FAILURES", 5),
		PaymentBreakerTimeout:  getDurationEnv("PAYMENT_BREAKER_TIMEOUT", 30*time.Second),
		LapseGracePeriod:       getDurationEnv("LAPSE_GRACE_PERIOD", 72*time.Hour),

		AnalyticsWindowDays: getIntEnv("ANALYTICS_WINDOW_DAYS", 30),
	}

	// No DATABASE_URL means zero-config local mode on SQLite.
	if cfg.DatabaseDriver == "" {
		if cfg.DatabaseURL == "" {
			cfg.DatabaseDriver = "sqlite"
		} else {
			cfg.DatabaseDriver = "postgres"
		}
	}
	cfg.LocalMode = cfg.DatabaseDriver == "sqlite"

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.LogFormat = "text"
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsLocalMode reports whether the SQLite backend is in use.
func (c *Config) IsLocalMode() bool {
	return c.LocalMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
