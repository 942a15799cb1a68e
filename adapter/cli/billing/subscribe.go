package billing

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	billingApp "github.com/felixgeelhaar/mosaic/internal/billing/application"
	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
)

var (
	checkoutEmail    string
	checkoutBusiness string

	subscribePayment  string
	subscribeExternal string
	subscribeTrial    int
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout [plan]",
	Short: "Start a purchase and print the payment intent",
	Long: `Create a payment intent for a plan. Confirm the intent with the
payment processor, then pass its id to "billing subscribe --payment".

Examples:
  mosaic billing checkout user_premium --email me@example.com
  mosaic billing checkout business_basic --business <id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		businessID, err := cli.OptionalID("business id", checkoutBusiness)
		if err != nil {
			return err
		}

		checkout, err := app.Billing.StartCheckout(cmd.Context(), billingApp.CheckoutRequest{
			UserID:     app.CurrentUserID,
			Email:      checkoutEmail,
			PlanID:     args[0],
			BusinessID: businessID,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checkout for %s: %s %s\n", checkout.Plan.Name, checkout.Amount.StringFixed(2), checkout.Plan.Currency)
		fmt.Fprintf(out, "  Payment intent: %s (%s)\n", checkout.Intent.ID, checkout.Intent.Status)
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [plan]",
	Short: "Subscribe to a plan",
	Long: `Issue a subscription backed by a succeeded payment. Without
--payment a checkout is started first, which only completes on processors
that settle intents immediately.

Examples:
  mosaic billing subscribe user_premium
  mosaic billing subscribe business_premium --business <id> --payment pi_123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}
		businessID, err := cli.OptionalID("business id", checkoutBusiness)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		reference := subscribePayment
		if reference == "" {
			checkout, err := app.Billing.StartCheckout(ctx, billingApp.CheckoutRequest{
				UserID:     app.CurrentUserID,
				Email:      checkoutEmail,
				PlanID:     args[0],
				BusinessID: businessID,
			})
			if err != nil {
				return err
			}
			reference = checkout.Intent.ID
		}

		req := billingApp.SubscribeRequest{
			UserID:                 app.CurrentUserID,
			PlanID:                 args[0],
			PaymentReference:       reference,
			BusinessID:             businessID,
			ExternalSubscriptionID: subscribeExternal,
		}
		if cmd.Flags().Changed("trial-days") {
			req.Options = domain.CreateOptions{TrialDays: &subscribeTrial}
		}

		sub, err := app.Billing.Subscribe(ctx, req)
		if err != nil {
			return err
		}
		printSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{checkoutCmd, subscribeCmd} {
		c.Flags().StringVar(&checkoutEmail, "email", "", "email for the processor customer")
		c.Flags().StringVar(&checkoutBusiness, "business", "", "business the subscription is for")
	}
	subscribeCmd.Flags().StringVar(&subscribePayment, "payment", "", "succeeded payment intent id")
	subscribeCmd.Flags().StringVar(&subscribeExternal, "external-id", "", "recurring subscription id at the processor")
	subscribeCmd.Flags().IntVar(&subscribeTrial, "trial-days", 0, "override the plan's trial length")
}
