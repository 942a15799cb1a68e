package billing

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the features your active subscriptions unlock",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		set, err := app.Billing.Features(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}
		printFeatures(cmd, set.Sorted())
		return nil
	},
}

var hasFeatureCmd = &cobra.Command{
	Use:   "has-feature [feature]",
	Short: "Check a single feature entitlement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireBilling()
		if err != nil {
			return err
		}

		ok, err := app.Billing.HasFeature(cmd.Context(), app.CurrentUserID, domain.Feature(args[0]))
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: granted\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not granted\n", args[0])
		}
		return nil
	},
}

func printFeatures(cmd *cobra.Command, features []domain.Feature) {
	out := cmd.OutOrStdout()
	if len(features) == 0 {
		fmt.Fprintln(out, "No features unlocked.")
		return
	}
	for _, f := range features {
		fmt.Fprintf(out, "  - %s\n", f)
	}
}
