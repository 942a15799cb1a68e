package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if app == nil || app.DB == nil {
			return ErrNoDatabase
		}
		ctx := cmd.Context()
		if err := migrations.Up(ctx, app.DB); err != nil {
			return err
		}
		version, err := migrations.Version(ctx, app.DB)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (%s)\n", version, app.DB.Driver())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
