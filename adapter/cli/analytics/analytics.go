// Package analytics holds the activity tracking and report commands.
package analytics

import (
	"github.com/spf13/cobra"
)

var reportDays int

// Cmd is the analytics report command group.
var Cmd = &cobra.Command{
	Use:   "analytics",
	Short: "Business, user and platform analytics",
	Long: `Read analytics built from recorded activity: per-business reports
and performance comparisons, a user's history and platform-wide totals.`,
}

func init() {
	Cmd.AddCommand(reportCmd)
	Cmd.AddCommand(performanceCmd)
	Cmd.AddCommand(insightsCmd)
	Cmd.AddCommand(userCmd)
	Cmd.AddCommand(platformCmd)
	Cmd.AddCommand(rollupCmd)
	rollupCmd.Flags().StringVar(&rollupDate, "date", "", "day to roll up, YYYY-MM-DD (default today)")

	for _, c := range []*cobra.Command{reportCmd, userCmd, platformCmd} {
		c.Flags().IntVarP(&reportDays, "days", "d", 0, "window in days (default from ANALYTICS_WINDOW_DAYS)")
	}
}
