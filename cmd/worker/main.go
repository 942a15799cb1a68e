package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/mosaic/internal/app"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/mosaic/pkg/config"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// version is set during build.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfigFor(
		cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, "mosaic-worker", version))
	slog.SetDefault(logger)

	logger.Info("starting mosaic worker")

	metrics := observability.NewPrometheusMetrics(nil)
	container, err := app.NewContainer(ctx, cfg, logger, app.WithMetrics(metrics))
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	publisher, err := app.NewBrokerPublisher(cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		publisher = eventbus.NewNoopPublisher(logger)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close publisher", "error", err)
		}
	}()

	relay := container.OutboxRelay(publisher)
	health := container.HealthRegistry()
	if pinger, ok := publisher.(interface{ Ping(context.Context) error }); ok {
		health.Register("rabbitmq", observability.RabbitMQHealthChecker(pinger.Ping))
	}

	if cfg.OutboxProcessorEnabled {
		health.Register("outbox", observability.OutboxHealthChecker(relay.Check(cfg.OutboxMaxLag)))
		logger.Info("starting outbox relay",
			"poll_interval", cfg.OutboxPollInterval,
			"batch_size", cfg.OutboxBatchSize,
			"max_retries", cfg.OutboxMaxRetries,
		)
		relay.Start(ctx)
		go cleanupLoop(ctx, logger, container.Repos.Outbox, cfg)
		go statsLoop(ctx, logger, relay, cfg.OutboxStatsInterval)
	} else {
		logger.Info("outbox relay disabled, serving health and metrics only")
	}

	if cfg.WorkerHealthAddr != "" {
		serveHealth(ctx, logger, cfg.WorkerHealthAddr, health)
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	relay.Stop()
	logger.Info("worker stopped")
}

func serveHealth(ctx context.Context, logger *slog.Logger, addr string, health *observability.HealthRegistry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		result := health.Check(checkCtx)
		body, err := result.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if result.Status == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write(body)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}

func cleanupLoop(ctx context.Context, logger *slog.Logger, repo *outbox.SQLRepository, cfg *config.Config) {
	ticker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.OutboxRetentionDays)
			deleted, err := repo.DeleteOld(ctx, cutoff)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
			}
		}
	}
}

func statsLoop(ctx context.Context, logger *slog.Logger, relay *outbox.Processor, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := relay.GetStats()
			logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"last_error", stats.LastError,
			)
		}
	}
}
