package billing

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
)

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Manage plans, subscriptions and payments",
	Long: `Browse the plan catalog, buy and manage subscriptions, check
feature entitlements and replay payment processor webhooks.`,
}

func init() {
	Cmd.AddCommand(plansCmd)
	Cmd.AddCommand(checkoutCmd)
	Cmd.AddCommand(subscribeCmd)
	Cmd.AddCommand(subscriptionCmd)
	Cmd.AddCommand(featuresCmd)
	Cmd.AddCommand(hasFeatureCmd)
	Cmd.AddCommand(paymentsCmd)
	Cmd.AddCommand(reconcileCmd)
	Cmd.AddCommand(webhookCmd)
}

func printSubscription(w io.Writer, sub *domain.Subscription) {
	fmt.Fprintf(w, "Subscription: %s\n", sub.ID)
	fmt.Fprintf(w, "  Plan:    %s (%s)\n", sub.PlanID, sub.Status)
	fmt.Fprintf(w, "  Amount:  %s %s / %s\n", sub.Amount.StringFixed(2), sub.Currency, sub.Interval)
	fmt.Fprintf(w, "  Period:  %s - %s\n", sub.PeriodStart.Format(time.DateOnly), sub.PeriodEnd.Format(time.DateOnly))
	if sub.TrialEnd != nil {
		fmt.Fprintf(w, "  Trial:   until %s\n", sub.TrialEnd.Format(time.DateOnly))
	}
	if sub.BusinessID != nil {
		fmt.Fprintf(w, "  Business: %s\n", *sub.BusinessID)
	}
	if sub.CancelledAt != nil {
		fmt.Fprintf(w, "  Cancelled: %s\n", sub.CancelledAt.Format(time.RFC1123))
	}
}
