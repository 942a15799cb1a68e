package directory

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	directoryApp "github.com/felixgeelhaar/mosaic/internal/directory/application"
	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
)

var (
	reviewRating  int
	reviewComment string
	reviewPage    int
	reviewMine    bool
)

var reviewAddCmd = &cobra.Command{
	Use:   "add [business-id]",
	Short: "Review a business",
	Long: `Rate a business from 1 to 5 stars. Each user can review a business once.

Examples:
  mosaic review add <business-id> --rating 5 --comment "Best jollof in town"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		businessID, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		review, err := app.Directory.AddReview(cmd.Context(), directoryApp.AddReviewRequest{
			BusinessID: businessID,
			UserID:     app.CurrentUserID,
			Rating:     reviewRating,
			Comment:    reviewComment,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added review %s (%d/5)\n", review.ID, review.Rating)
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list [business-id]",
	Short: "List reviews for a business, or your own with --mine",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var page *domain.Page[*domain.Review]
		switch {
		case reviewMine:
			page, err = app.Directory.ListUserReviews(ctx, app.CurrentUserID, reviewPage)
		case len(args) == 1:
			businessID, perr := cli.ParseID("business id", args[0])
			if perr != nil {
				return perr
			}
			page, err = app.Directory.ListReviews(ctx, businessID, reviewPage)
		default:
			return fmt.Errorf("business id or --mine is required")
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if page.Total == 0 {
			fmt.Fprintln(out, "No reviews yet.")
			return nil
		}
		fmt.Fprintf(out, "%d reviews (page %d of %d)\n", page.Total, page.Page, page.Pages())
		for _, r := range page.Items {
			printReview(out, r)
		}
		return nil
	},
}

var reviewUpdateCmd = &cobra.Command{
	Use:   "update [review-id]",
	Short: "Change a review's rating or comment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("review id", args[0])
		if err != nil {
			return err
		}

		req := directoryApp.UpdateReviewRequest{ReviewID: id}
		if cmd.Flags().Changed("rating") {
			req.Rating = &reviewRating
		}
		if cmd.Flags().Changed("comment") {
			req.Comment = &reviewComment
		}
		review, err := app.Directory.UpdateReview(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated review %s (%d/5)\n", review.ID, review.Rating)
		return nil
	},
}

var reviewDeleteCmd = &cobra.Command{
	Use:   "delete [review-id]",
	Short: "Delete a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("review id", args[0])
		if err != nil {
			return err
		}

		if err := app.Directory.DeleteReview(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted review %s\n", id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewAddCmd, reviewUpdateCmd} {
		c.Flags().IntVarP(&reviewRating, "rating", "r", 0, "stars from 1 to 5")
		c.Flags().StringVarP(&reviewComment, "comment", "c", "", "review text")
	}
	reviewListCmd.Flags().IntVar(&reviewPage, "page", 1, "page number")
	reviewListCmd.Flags().BoolVar(&reviewMine, "mine", false, "list your own reviews")
}
