package analytics

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
)

var (
	trackBusiness string
	trackQuery    string
	trackCategory string
	trackLocation string
	trackPage     string
	trackDevice   string
	trackDuration int

	searchShown    []string
	searchClicked  string
	searchPosition int
	searchResults  int
)

// TrackCmd records a single activity event.
var TrackCmd = &cobra.Command{
	Use:   "track [kind]",
	Short: "Record an activity event",
	Long: `Record an activity event for the current user and session. Kinds:
view_business, phone_click, website_click, direction_request, favorite,
search, review, signup, login.

Examples:
  mosaic track view_business --business <id>
  mosaic track phone_click --business <id> --device mobile`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}
		businessID, err := cli.OptionalID("business id", trackBusiness)
		if err != nil {
			return err
		}

		userID := app.CurrentUserID
		in := analyticsApp.ActivityInput{
			UserID:      &userID,
			SessionID:   app.SessionID,
			Kind:        domain.ActivityKind(args[0]),
			BusinessID:  businessID,
			SearchQuery: trackQuery,
			Category:    trackCategory,
			Location:    trackLocation,
			PageURL:     trackPage,
			UserAgent:   "mosaic-cli/" + cli.Version,
			DeviceType:  trackDevice,
		}
		if cmd.Flags().Changed("duration") {
			in.Duration = &trackDuration
		}

		event, err := app.Recorder.Record(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s)\n", event.Kind, event.ID)
		return nil
	},
}

// TrackSearchCmd records a search and the listings it showed.
var TrackSearchCmd = &cobra.Command{
	Use:   "track-search [query]",
	Short: "Record a search and its results",
	Long: `Record a search. Every business in --shown gets a search appearance.

Examples:
  mosaic track-search "vegan bakery" --shown <id1>,<id2> --clicked <id2> --position 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireAnalytics()
		if err != nil {
			return err
		}

		shown := make([]uuid.UUID, 0, len(searchShown))
		for _, raw := range searchShown {
			id, err := cli.ParseID("business id", raw)
			if err != nil {
				return err
			}
			shown = append(shown, id)
		}
		clicked, err := cli.OptionalID("clicked business id", searchClicked)
		if err != nil {
			return err
		}

		userID := app.CurrentUserID
		in := analyticsApp.SearchInput{
			UserID:            &userID,
			SessionID:         app.SessionID,
			Query:             args[0],
			Category:          trackCategory,
			Location:          trackLocation,
			ResultsCount:      searchResults,
			ShownBusinessIDs:  shown,
			ClickedBusinessID: clicked,
		}
		if cmd.Flags().Changed("position") {
			in.ClickPosition = &searchPosition
		}

		event, err := app.Recorder.RecordSearch(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded search %q with %d results (%s)\n", strings.TrimSpace(event.Query), event.ResultsCount, event.ID)
		return nil
	},
}

func init() {
	fs := TrackCmd.Flags()
	fs.StringVar(&trackBusiness, "business", "", "business the activity concerns")
	fs.StringVar(&trackQuery, "query", "", "search query")
	fs.StringVar(&trackCategory, "category", "", "category")
	fs.StringVar(&trackLocation, "location", "", "location")
	fs.StringVar(&trackPage, "page-url", "", "page the activity happened on")
	fs.StringVar(&trackDevice, "device", "", "device type such as mobile, desktop or tablet")
	fs.IntVar(&trackDuration, "duration", 0, "seconds spent")

	fs = TrackSearchCmd.Flags()
	fs.StringVar(&trackCategory, "category", "", "category filter")
	fs.StringVar(&trackLocation, "location", "", "location filter")
	fs.StringSliceVar(&searchShown, "shown", nil, "business ids on the results page")
	fs.StringVar(&searchClicked, "clicked", "", "business id the user clicked")
	fs.IntVar(&searchPosition, "position", 0, "1-based position of the click")
	fs.IntVar(&searchResults, "results", 0, "total results (default: number shown)")
}
