package billing

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, plan := range app.Billing.Plans() {
			fmt.Fprintf(out, "%-20s %-22s %8s %s/%s", plan.ID, plan.Name, plan.Price.StringFixed(2), strings.ToUpper(plan.Currency), plan.Interval)
			if plan.TrialDays > 0 {
				fmt.Fprintf(out, "  (%d day trial)", plan.TrialDays)
			}
			fmt.Fprintln(out)
			if cli.Verbose() {
				for _, h := range plan.Highlights {
					fmt.Fprintf(out, "    - %s\n", h)
				}
			}
		}
		return nil
	},
}
