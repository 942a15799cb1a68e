package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "MOSAIC_USER_ID", "MOSAIC_SESSION_ID",
	"DATABASE_URL", "DATABASE_DRIVER", "SQLITE_PATH",
	"REDIS_URL", "RANKING_CACHE_TTL", "RABBITMQ_URL", "RABBITMQ_EXCHANGE",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES", "OUTBOX_PROCESSOR_ENABLED",
	"OUTBOX_MAX_LAG", "OUTBOX_RETENTION_DAYS", "OUTBOX_CLEANUP_INTERVAL", "OUTBOX_STATS_INTERVAL",
	"WORKER_HEALTH_ADDR",
	"PAYMENT_PROVIDER", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
	"PAYMENT_BREAKER_FAILURES", "PAYMENT_BREAKER_TIMEOUT", "LAPSE_GRACE_PERIOD",
	"ANALYTICS_WINDOW_DAYS",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, DefaultUserID, cfg.UserID)
	assert.Empty(t, cfg.SessionID)

	assert.True(t, cfg.IsLocalMode())
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10*time.Minute, cfg.RankingCacheTTL)
	assert.Equal(t, "mosaic.domain.events", cfg.RabbitMQExchange)

	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, 5*time.Minute, cfg.OutboxMaxLag)
	assert.Equal(t, 7, cfg.OutboxRetentionDays)
	assert.Equal(t, time.Hour, cfg.OutboxCleanupInterval)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)

	assert.Equal(t, "local", cfg.PaymentProvider)
	assert.Equal(t, 5, cfg.PaymentBreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.PaymentBreakerTimeout)
	assert.Equal(t, 72*time.Hour, cfg.LapseGracePeriod)
	assert.Equal(t, 30, cfg.AnalyticsWindowDays)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://mosaic@localhost:5432/mosaic")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("RANKING_CACHE_TTL", "90s")
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("LAPSE_GRACE_PERIOD", "24h")
	t.Setenv("ANALYTICS_WINDOW_DAYS", "7")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("MOSAIC_SESSION_ID", "sess-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.False(t, cfg.IsLocalMode())
	assert.Equal(t, 90*time.Second, cfg.RankingCacheTTL)
	assert.Equal(t, "stripe", cfg.PaymentProvider)
	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
	assert.Equal(t, 24*time.Hour, cfg.LapseGracePeriod)
	assert.Equal(t, 7, cfg.AnalyticsWindowDays)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, "sess-1", cfg.SessionID)
}

func TestLoad_ExplicitDriverWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://ignored")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/mosaic-test.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsLocalMode())
	assert.Equal(t, "/tmp/mosaic-test.db", cfg.SQLitePath)
}

func TestGetters_InvalidFallBack(t *testing.T) {
	t.Setenv("MOSAIC_TEST_INT", "many")
	t.Setenv("MOSAIC_TEST_DURATION", "soon")
	t.Setenv("MOSAIC_TEST_BOOL", "maybe")

	assert.Equal(t, 3, getIntEnv("MOSAIC_TEST_INT", 3))
	assert.Equal(t, time.Minute, getDurationEnv("MOSAIC_TEST_DURATION", time.Minute))
	assert.True(t, getBoolEnv("MOSAIC_TEST_BOOL", true))
	assert.Equal(t, "fallback", getEnv("MOSAIC_TEST_UNSET", "fallback"))
}
