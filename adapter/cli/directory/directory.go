// Package directory holds the business and review commands.
package directory

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
)

// BusinessCmd is the business listing command group.
var BusinessCmd = &cobra.Command{
	Use:     "business",
	Aliases: []string{"biz"},
	Short:   "Manage and search business listings",
}

// ReviewCmd is the review command group.
var ReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Rate and review businesses",
}

func init() {
	BusinessCmd.AddCommand(businessAddCmd)
	BusinessCmd.AddCommand(businessShowCmd)
	BusinessCmd.AddCommand(businessUpdateCmd)
	BusinessCmd.AddCommand(businessDeleteCmd)
	BusinessCmd.AddCommand(businessSearchCmd)
	BusinessCmd.AddCommand(categoriesCmd)
	BusinessCmd.AddCommand(citiesCmd)

	ReviewCmd.AddCommand(reviewAddCmd)
	ReviewCmd.AddCommand(reviewListCmd)
	ReviewCmd.AddCommand(reviewUpdateCmd)
	ReviewCmd.AddCommand(reviewDeleteCmd)
}

func printListing(w io.Writer, l *domain.Listing) {
	fmt.Fprintf(w, "%s", l.Name)
	if l.Verified {
		fmt.Fprint(w, " [verified]")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  ID:       %s\n", l.ID)
	fmt.Fprintf(w, "  Category: %s (%s)\n", l.Category, l.MinorityType)
	fmt.Fprintf(w, "  Address:  %s, %s, %s %s\n", l.Address, l.City, l.State, l.ZipCode)
	if l.Phone != "" {
		fmt.Fprintf(w, "  Phone:    %s\n", l.Phone)
	}
	if l.Website != "" {
		fmt.Fprintf(w, "  Website:  %s\n", l.Website)
	}
	if l.Hours != "" {
		fmt.Fprintf(w, "  Hours:    %s\n", l.Hours)
	}
	if l.Rating.Count > 0 {
		fmt.Fprintf(w, "  Rating:   %.1f (%d reviews)\n", l.Rating.Rounded(), l.Rating.Count)
	} else {
		fmt.Fprintln(w, "  Rating:   no reviews yet")
	}
	if l.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", l.Description)
	}
}

func printReview(w io.Writer, r *domain.Review) {
	fmt.Fprintf(w, "%s  %s  %d/5", r.ID, r.CreatedAt.Format("2006-01-02"), r.Rating)
	if r.Comment != "" {
		fmt.Fprintf(w, "  %s", r.Comment)
	}
	fmt.Fprintln(w)
}
