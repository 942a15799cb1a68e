package analytics

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
)

var rollupDate string

var reportCmd = &cobra.Command{
	Use:     "report [business-id]",
	Aliases: []string{"summary"},
	Short:   "Summarize a business's activity over a window",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		report, err := app.Reports.BusinessReport(cmd.Context(), id, reportDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		s := report.Summary
		fmt.Fprintf(out, "Last %d days (%s - %s)\n", s.WindowDays, s.StartDate.Format(time.DateOnly), s.EndDate.Format(time.DateOnly))
		printTotals(out, s.Totals)
		if len(report.TopQueries) > 0 {
			fmt.Fprintln(out, "Top searches:")
			for _, q := range report.TopQueries {
				fmt.Fprintf(out, "  %-30q %d\n", q.Query, q.Count)
			}
		}
		if cli.Verbose() && len(report.RecentActivity) > 0 {
			fmt.Fprintln(out, "Recent activity:")
			for _, e := range report.RecentActivity {
				fmt.Fprintf(out, "  %s  %s\n", e.OccurredAt.Format(time.DateTime), e.Kind)
			}
		}
		return nil
	},
}

var performanceCmd = &cobra.Command{
	Use:   "performance [business-id]",
	Short: "Compare the last two months and rank within the category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		report, err := app.Reports.Performance(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile views:      %d (previous %d, %+.1f%%)\n",
			report.ProfileViews.Current, report.ProfileViews.Previous, report.ProfileViews.ChangePercent)
		fmt.Fprintf(out, "Search appearances: %d (previous %d, %+.1f%%)\n",
			report.SearchAppearances.Current, report.SearchAppearances.Previous, report.SearchAppearances.ChangePercent)
		if r := report.Ranking; r != nil {
			fmt.Fprintf(out, "Rank in %s: %d of %d (score %d)\n", r.Category, r.Rank, r.Total, r.Score)
		}
		printInsights(out, report.Insights)
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights [business-id]",
	Short: "Suggestions from month over month changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		insights, err := app.Reports.Insights(cmd.Context(), id)
		if err != nil {
			return err
		}
		printInsights(cmd.OutOrStdout(), insights)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show your recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}

		report, err := app.Reports.UserActivity(cmd.Context(), app.CurrentUserID, reportDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Activity over the last %d days\n", report.WindowDays)
		if len(report.Summary) == 0 {
			fmt.Fprintln(out, "  nothing recorded")
		}
		for _, kc := range report.Summary {
			fmt.Fprintf(out, "  %-18s %d\n", kc.Kind, kc.Count)
		}
		if len(report.Searches) > 0 {
			fmt.Fprintln(out, "Recent searches:")
			for _, s := range report.Searches {
				fmt.Fprintf(out, "  %s  %q (%d results)\n", s.SearchedAt.Format(time.DateTime), s.Query, s.ResultsCount)
			}
		}
		return nil
	},
}

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Platform-wide totals and daily rollups",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}

		o, err := app.Reports.PlatformOverview(cmd.Context(), reportDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Businesses:           %d\n", o.TotalBusinesses)
		fmt.Fprintf(out, "Active subscriptions: %d\n", o.ActiveSubscriptions)
		fmt.Fprintf(out, "Searches (%d days):   %d\n", o.WindowDays, o.RecentSearches)
		fmt.Fprintf(out, "Views (%d days):      %d\n", o.WindowDays, o.RecentViews)
		for _, d := range o.Daily {
			printPlatformDay(out, d)
		}
		return nil
	},
}

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Compute and store the platform rollup for a day",
	Long: `Compute the platform metrics for a day and store them. Rerunning a
day replaces its row.

Examples:
  mosaic analytics rollup
  mosaic analytics rollup --date 2026-06-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}

		date := time.Now().UTC()
		if rollupDate != "" {
			date, err = time.Parse(time.DateOnly, rollupDate)
			if err != nil {
				return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
			}
		}

		m, err := app.Reports.RollupPlatformDay(cmd.Context(), date)
		if err != nil {
			return err
		}
		printPlatformDay(cmd.OutOrStdout(), m)
		return nil
	},
}

func printTotals(w io.Writer, t domain.Totals) {
	fmt.Fprintf(w, "  Profile views:      %d\n", t.ProfileViews)
	fmt.Fprintf(w, "  Unique visitors:    %d\n", t.UniqueVisitors)
	fmt.Fprintf(w, "  Search appearances: %d\n", t.SearchAppearances)
	fmt.Fprintf(w, "  Phone clicks:       %d\n", t.PhoneClicks)
	fmt.Fprintf(w, "  Website clicks:     %d\n", t.WebsiteClicks)
	fmt.Fprintf(w, "  Direction requests: %d\n", t.DirectionRequests)
	fmt.Fprintf(w, "  Favorites added:    %d\n", t.FavoritesAdded)
	fmt.Fprintf(w, "  Reviews received:   %d\n", t.ReviewsReceived)
}

func printInsights(w io.Writer, insights []domain.Insight) {
	if len(insights) == 0 {
		fmt.Fprintln(w, "No insights yet.")
		return
	}
	for _, in := range insights {
		fmt.Fprintf(w, "[%s] %s: %s\n", in.Type, in.Title, in.Message)
	}
}

func printPlatformDay(w io.Writer, m *domain.PlatformMetrics) {
	fmt.Fprintf(w, "%s  users %d (premium %d)  businesses %d (+%d, premium %d)  searches %d  views %d  reviews %d  revenue %s\n",
		m.Date.Format(time.DateOnly), m.ActiveUsers, m.PremiumUsers,
		m.TotalBusinesses, m.NewBusinesses, m.PremiumBusinesses,
		m.TotalSearches, m.TotalViews, m.TotalReviews, m.SubscriptionRevenue.StringFixed(2))
}
