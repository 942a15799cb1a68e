package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
)

var renewReference string

var subscriptionCmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Inspect and change subscriptions",
}

var subscriptionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		subs, err := app.Billing.ListForUser(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(subs) == 0 {
			fmt.Fprintln(out, "No subscriptions found.")
			return nil
		}
		for _, sub := range subs {
			fmt.Fprintf(out, "%s  %-20s %-10s renews %s\n", sub.ID, sub.PlanID, sub.Status, sub.PeriodEnd.Format(time.DateOnly))
		}
		return nil
	},
}

var subscriptionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error) {
		return app.Billing.Get(ctx, id)
	}),
}

var subscriptionCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a subscription",
	Long:  `Cancel a subscription. Entitlements end immediately.`,
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error) {
		return app.Billing.Cancel(ctx, id)
	}),
}

var subscriptionRenewCmd = &cobra.Command{
	Use:   "renew [id]",
	Short: "Renew a subscription for another billing period",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error) {
		return app.Billing.Renew(ctx, id, renewReference)
	}),
}

var subscriptionPastDueCmd = &cobra.Command{
	Use:   "past-due [id]",
	Short: "Mark a subscription past due",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error) {
		return app.Billing.MarkPastDue(ctx, id)
	}),
}

var subscriptionExpireCmd = &cobra.Command{
	Use:   "expire [id]",
	Short: "Expire a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE(func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error) {
		return app.Billing.Expire(ctx, id)
	}),
}

var subscriptionFeaturesCmd = &cobra.Command{
	Use:   "features [id]",
	Short: "List the features a subscription unlocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("subscription id", args[0])
		if err != nil {
			return err
		}

		features, err := app.Billing.SubscriptionFeatures(cmd.Context(), id)
		if err != nil {
			return err
		}
		printFeatures(cmd, features)
		return nil
	},
}

// transitionRunE parses the subscription id, applies fn and prints the result.
func transitionRunE(fn func(ctx context.Context, app *cli.App, id uuid.UUID) (*domain.Subscription, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("subscription id", args[0])
		if err != nil {
			return err
		}

		sub, err := fn(cmd.Context(), app, id)
		if err != nil {
			return err
		}
		printSubscription(cmd.OutOrStdout(), sub)
		return nil
	}
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Expire subscriptions lapsed past the grace period",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		expired, err := app.Billing.ReconcileLapsed(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Expired %d subscription(s).\n", len(expired))
		for _, sub := range expired {
			fmt.Fprintf(out, "  %s %s (period ended %s)\n", sub.ID, sub.PlanID, sub.PeriodEnd.Format(time.DateOnly))
		}
		return nil
	},
}

func init() {
	subscriptionRenewCmd.Flags().StringVar(&renewReference, "payment", "", "payment reference for the renewal charge")

	subscriptionCmd.AddCommand(subscriptionListCmd)
	subscriptionCmd.AddCommand(subscriptionShowCmd)
	subscriptionCmd.AddCommand(subscriptionCancelCmd)
	subscriptionCmd.AddCommand(subscriptionRenewCmd)
	subscriptionCmd.AddCommand(subscriptionPastDueCmd)
	subscriptionCmd.AddCommand(subscriptionExpireCmd)
	subscriptionCmd.AddCommand(subscriptionFeaturesCmd)
}
