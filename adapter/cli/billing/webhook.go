package billing

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/security"
)

var (
	webhookEventPath string
	webhookSignature string
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Apply a payment processor webhook payload",
	Long: `Verify and apply a webhook payload saved from the payment processor.

Examples:
  mosaic billing webhook --event ./event.json --signature "t=...,v1=..."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if webhookEventPath == "" {
			return errors.New("event path is required")
		}
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		payload, err := security.ReadPayload(webhookEventPath, security.MaxWebhookPayload)
		if err != nil {
			return err
		}

		result, err := app.Billing.HandleWebhook(cmd.Context(), payload, webhookSignature)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !result.Handled {
			fmt.Fprintf(out, "Ignored webhook event %s (%s)\n", result.EventID, result.Type)
			return nil
		}
		fmt.Fprintf(out, "Applied webhook event %s (%s)\n", result.EventID, result.Type)
		if result.PaymentsUpdated > 0 {
			fmt.Fprintf(out, "  Payments updated: %d\n", result.PaymentsUpdated)
		}
		if result.Subscription != nil {
			fmt.Fprintf(out, "  Subscription %s is now %s\n", result.Subscription.ID, result.Subscription.Status)
		}
		return nil
	},
}

func init() {
	webhookCmd.Flags().StringVar(&webhookEventPath, "event", "", "path to webhook event JSON")
	webhookCmd.Flags().StringVar(&webhookSignature, "signature", "", "signature header sent with the event")
}
