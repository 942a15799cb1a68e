// Package app wires mosaic's bounded contexts to their infrastructure.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	"github.com/felixgeelhaar/mosaic/internal/analytics/application/subscribers"
	analyticsDomain "github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	"github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/cache"
	billingApp "github.com/felixgeelhaar/mosaic/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/mosaic/internal/billing/domain"
	"github.com/felixgeelhaar/mosaic/internal/billing/infrastructure/payments"
	directoryApp "github.com/felixgeelhaar/mosaic/internal/directory/application"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database/postgres" // registers the driver
	_ "github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database/sqlite"   // registers the driver
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/mosaic/pkg/config"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics

	DB    database.Connection
	Redis *redis.Client

	Repos      *Repositories
	UnitOfWork sharedApplication.UnitOfWork
	EventBus   *eventbus.InProcessEventBus

	PaymentProcessor billingDomain.PaymentProcessor
	Billing          *billingApp.Service

	Directory *directoryApp.Service

	Aggregator *analyticsApp.Aggregator
	Recorder   *analyticsApp.Recorder
	Reports    *analyticsApp.Reports

	clock func() time.Time
}

// Option customizes a container.
type Option func(*options)

type options struct {
	metrics   observability.Metrics
	clock     func() time.Time
	processor billingDomain.PaymentProcessor
}

// WithMetrics routes service metrics to m.
func WithMetrics(m observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now in every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithPaymentProcessor overrides the processor selected by PAYMENT_PROVIDER.
func WithPaymentProcessor(p billingDomain.PaymentProcessor) Option {
	return func(o *options) { o.processor = p }
}

// NewContainer connects to the database, applies migrations and builds every
// service. Redis is optional: without it rankings are recomputed per call.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{metrics: observability.NoopMetrics{}, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := migrations.Up(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("database ready", "driver", conn.Driver(), "local_mode", cfg.IsLocalMode())

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    o.metrics,
		DB:         conn,
		Repos:      NewRepositories(conn),
		UnitOfWork: database.NewUnitOfWork(conn),
		EventBus:   eventbus.NewInProcessEventBus(logger),
		clock:      o.clock,
	}

	var rankingCache analyticsDomain.RankingCache
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		switch {
		case err == nil:
			c.Redis = client
			rankingCache = cache.NewRedisRankingCache(client, cfg.RankingCacheTTL)
			logger.Info("ranking cache enabled", "ttl", cfg.RankingCacheTTL)
		case cfg.IsDevelopment():
			logger.Warn("redis not available, rankings will be recomputed", "error", err)
		default:
			c.Close()
			return nil, err
		}
	}

	c.PaymentProcessor = o.processor
	if c.PaymentProcessor == nil {
		if c.PaymentProcessor, err = newPaymentProcessor(cfg, o.metrics, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Billing = billingApp.NewService(billingApp.Deps{
		Catalog:       billingDomain.DefaultCatalog(),
		Subscriptions: c.Repos.Subscriptions,
		Payments:      c.Repos.Payments,
		Customers:     c.Repos.Customers,
		Processor:     c.PaymentProcessor,
		Events:        c.Repos.Outbox,
		UnitOfWork:    c.UnitOfWork,
		Locker:        database.NewKeyLocker(conn),
		Metrics:       o.metrics,
		Logger:        logger,
		GracePeriod:   cfg.LapseGracePeriod,
		Clock:         o.clock,
	})

	c.Aggregator = analyticsApp.NewAggregator(analyticsApp.AggregatorDeps{
		Store:   c.Repos.Metrics,
		Cache:   rankingCache,
		Metrics: o.metrics,
		Logger:  logger,
		Clock:   o.clock,
	})
	c.Recorder = analyticsApp.NewRecorder(analyticsApp.RecorderDeps{
		Activities: c.Repos.Activities,
		Searches:   c.Repos.Searches,
		Aggregator: c.Aggregator,
		UnitOfWork: c.UnitOfWork,
		Metrics:    o.metrics,
		Logger:     logger,
		Clock:      o.clock,
	})
	c.Reports = analyticsApp.NewReports(analyticsApp.ReportsDeps{
		Aggregator: c.Aggregator,
		Activities: c.Repos.Activities,
		Searches:   c.Repos.Searches,
		Store:      c.Repos.Metrics,
		Platform:   c.Repos.Platform,
		Source:     c.Repos.Source,
		WindowDays: cfg.AnalyticsWindowDays,
		Metrics:    o.metrics,
		Logger:     logger,
		Clock:      o.clock,
	})

	c.Directory = directoryApp.NewService(directoryApp.Deps{
		Businesses: c.Repos.Businesses,
		Reviews:    c.Repos.Reviews,
		Events:     c.Repos.Outbox,
		Dispatcher: c.EventBus,
		UnitOfWork: c.UnitOfWork,
		Metrics:    o.metrics,
		Logger:     logger,
		Clock:      o.clock,
	})

	// Reviews reach analytics synchronously after commit. The outbox copy
	// goes to the broker only, so the subscriber never sees an event twice.
	c.EventBus.RegisterConsumer(subscribers.NewReviewSubscriber(c.Recorder, logger))

	return c, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func newPaymentProcessor(cfg *config.Config, metrics observability.Metrics, logger *slog.Logger) (billingDomain.PaymentProcessor, error) {
	switch cfg.PaymentProvider {
	case "", "local":
		return payments.NewLocalProcessor(cfg.StripeWebhookSecret), nil
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, errors.New("PAYMENT_PROVIDER=stripe requires STRIPE_SECRET_KEY")
		}
		breaker := payments.BreakerConfig{
			FailureThreshold: convert.ClampUint32(cfg.PaymentBreakerFailures, 1),
			Timeout:          cfg.PaymentBreakerTimeout,
		}
		return payments.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, breaker, metrics, logger), nil
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}
}

// NewBrokerPublisher connects to RabbitMQ, or returns a publisher that drops
// messages when RABBITMQ_URL is empty.
func NewBrokerPublisher(cfg *config.Config, logger *slog.Logger) (eventbus.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		return eventbus.NewNoopPublisher(logger), nil
	}
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// OutboxRelay builds the processor that drains the outbox into publisher.
func (c *Container) OutboxRelay(publisher eventbus.Publisher) *outbox.Processor {
	relay := outbox.NewProcessor(c.Repos.Outbox, publisher, outbox.ProcessorConfig{
		PollInterval:     c.Config.OutboxPollInterval,
		BatchSize:        c.Config.OutboxBatchSize,
		MaxRetries:       c.Config.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
	}, c.Metrics, c.Logger)
	return relay.WithClock(c.clock)
}

// HealthRegistry registers the checks for the container's dependencies.
func (c *Container) HealthRegistry() *observability.HealthRegistry {
	reg := observability.NewHealthRegistry()
	reg.Register("database", observability.DatabaseHealthChecker(c.DB.Ping))
	if c.Redis != nil {
		reg.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}))
	}
	return reg
}

// Close releases the connections held by the container.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("failed to close database", "error", err)
		}
	}
}
