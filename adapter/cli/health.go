package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the database and cache connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		if app == nil || app.Health == nil {
			return ErrNoDatabase
		}

		health := app.Health.Check(cmd.Context())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Status: %s\n", health.Status)
		for _, name := range app.Health.Names() {
			result := health.Checks[name]
			fmt.Fprintf(out, "  %-10s %-9s %s\n", name, result.Status, result.Message)
		}
		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
