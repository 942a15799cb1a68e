package directory

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
)

var searchFilter domain.SearchFilter

var businessSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search business listings",
	Long: `Search listings by name or description, narrowed by location,
category and ownership. Filters match exactly, ignoring case.

Examples:
  mosaic business search bakery --city Atlanta
  mosaic business search --category Restaurant --minority-type Latino-owned --page 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}

		filter := searchFilter
		if len(args) == 1 {
			filter.Term = args[0]
		}
		page, err := app.Directory.Search(cmd.Context(), filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if page.Total == 0 {
			fmt.Fprintln(out, "No businesses found.")
			return nil
		}
		fmt.Fprintf(out, "%d businesses (page %d of %d)\n", page.Total, page.Page, page.Pages())
		for _, l := range page.Items {
			rating := "-"
			if l.Rating.Count > 0 {
				rating = fmt.Sprintf("%.1f", l.Rating.Rounded())
			}
			fmt.Fprintf(out, "  %s  %-30s %-15s %s, %s  %s\n", l.ID, l.Name, l.Category, l.City, l.State, rating)
		}
		if page.HasNext() {
			fmt.Fprintf(out, "More results: --page %d\n", page.Page+1)
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}

		categories, err := app.Directory.Categories(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(categories, "\n"))
		return nil
	},
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List the cities with listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}

		cities, err := app.Directory.Cities(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range cities {
			fmt.Fprintln(out, c.String())
		}
		return nil
	},
}

func init() {
	fs := businessSearchCmd.Flags()
	fs.StringVar(&searchFilter.City, "city", "", "city")
	fs.StringVar(&searchFilter.State, "state", "", "state")
	fs.StringVar(&searchFilter.Category, "category", "", `category, "all" for any`)
	fs.StringVar(&searchFilter.MinorityType, "minority-type", "", "ownership")
	fs.IntVar(&searchFilter.Page, "page", 1, "page number")
	fs.IntVar(&searchFilter.PerPage, "per-page", 0, "results per page")
}
