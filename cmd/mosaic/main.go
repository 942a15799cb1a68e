package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	cliAnalytics "github.com/felixgeelhaar/mosaic/adapter/cli/analytics"
	cliBilling "github.com/felixgeelhaar/mosaic/adapter/cli/billing"
	cliDirectory "github.com/felixgeelhaar/mosaic/adapter/cli/directory"
	"github.com/felixgeelhaar/mosaic/internal/app"
	"github.com/felixgeelhaar/mosaic/pkg/config"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logCfg := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, "mosaic", cli.Version)
	logCfg.AddSource = false
	logger := observability.NewLogger(logCfg)
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// version and help still work without a database
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			logger.Error("invalid MOSAIC_USER_ID", "error", err)
			os.Exit(1)
		}
		sessionID := cfg.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		cliApp = &cli.App{
			Billing:       container.Billing,
			Directory:     container.Directory,
			Recorder:      container.Recorder,
			Reports:       container.Reports,
			DB:            container.DB,
			Health:        container.HealthRegistry(),
			CurrentUserID: userID,
			SessionID:     sessionID,
		}
	}
	cli.SetApp(cliApp)

	cli.AddCommand(cliBilling.Cmd)
	cli.AddCommand(cliDirectory.BusinessCmd)
	cli.AddCommand(cliDirectory.ReviewCmd)
	cli.AddCommand(cliAnalytics.Cmd)
	cli.AddCommand(cliAnalytics.TrackCmd)
	cli.AddCommand(cliAnalytics.TrackSearchCmd)

	cli.Execute(ctx)
}
