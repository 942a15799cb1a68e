// Package clitest builds a CLI application over a throwaway SQLite
// database for command tests.
package clitest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/app"
	"github.com/felixgeelhaar/mosaic/pkg/config"
)

// Now is the fixed clock every test container runs on.
var Now = time.Date(2026, 6, 30, 15, 0, 0, 0, time.UTC)

// WebhookSecret signs webhook payloads accepted by the local processor.
const WebhookSecret = "whsec_cli_test"

// NewApp wires a local-mode container and installs it as the CLI app for
// the duration of the test.
func NewApp(t *testing.T) (*cli.App, *app.Container) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:              "test",
		LogLevel:            "error",
		DatabaseDriver:      "sqlite",
		SQLitePath:          filepath.Join(t.TempDir(), "mosaic.db"),
		LocalMode:           true,
		UserID:              config.DefaultUserID,
		PaymentProvider:     "local",
		StripeWebhookSecret: WebhookSecret,
		LapseGracePeriod:    72 * time.Hour,
		AnalyticsWindowDays: 30,
	}

	c, err := app.NewContainer(context.Background(), cfg, slog.New(slog.DiscardHandler),
		app.WithClock(func() time.Time { return Now }),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	a := &cli.App{
		Billing:       c.Billing,
		Directory:     c.Directory,
		Recorder:      c.Recorder,
		Reports:       c.Reports,
		DB:            c.DB,
		Health:        c.HealthRegistry(),
		CurrentUserID: uuid.New(),
		SessionID:     "cli-test",
	}
	cli.SetApp(a)
	t.Cleanup(func() { cli.SetApp(nil) })
	return a, c
}

// Run invokes cmd's RunE with args and returns what it printed.
func Run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, args)
	return output.String(), err
}
