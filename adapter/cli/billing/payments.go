package billing

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Show your payment history",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		records, err := app.Billing.PaymentHistory(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No payments found.")
			return nil
		}
		for _, p := range records {
			fmt.Fprintf(out, "%s  %8s %s  %-9s %s\n", p.PaidAt.Format(time.DateOnly), p.Amount.StringFixed(2), p.Currency, p.Status, p.Description)
		}
		return nil
	},
}
