package directory

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mosaic/adapter/cli"
	analyticsApp "github.com/felixgeelhaar/mosaic/internal/analytics/application"
	analyticsDomain "github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	directoryApp "github.com/felixgeelhaar/mosaic/internal/directory/application"
	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
)

// businessFlags backs the add and update flag sets.
var businessFlags struct {
	name, description, address, city, state, zip string
	phone, website, category, minority, placeID   string
	imageURL, hours                               string
	latitude, longitude                           float64
	verified                                      bool
}

var businessAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a business listing",
	Long: `Create a business listing.

Examples:
  mosaic business add --name "Soul Food Kitchen" --address "1 Main St" \
    --city Atlanta --state GA --category Restaurant --minority-type Black-owned`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}

		f := businessFlags
		in := domain.BusinessInput{
			Name:          f.name,
			Description:   f.description,
			Address:       f.address,
			City:          f.city,
			State:         f.state,
			ZipCode:       f.zip,
			Phone:         f.phone,
			Website:       f.website,
			Category:      f.category,
			MinorityType:  f.minority,
			GooglePlaceID: f.placeID,
			ImageURL:      f.imageURL,
			Hours:         f.hours,
		}
		if cmd.Flags().Changed("lat") {
			in.Latitude = &f.latitude
		}
		if cmd.Flags().Changed("lng") {
			in.Longitude = &f.longitude
		}

		b, err := app.Directory.CreateBusiness(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created business %s (%s)\n", b.Name, b.ID)
		return nil
	},
}

var businessShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a business listing",
	Long:  `Show a business listing. The view counts toward the listing's analytics.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		listing, err := app.Directory.GetBusiness(ctx, id)
		if err != nil {
			return err
		}
		printListing(cmd.OutOrStdout(), listing)

		if app.Recorder != nil {
			userID := app.CurrentUserID
			if _, err := app.Recorder.Record(ctx, analyticsApp.ActivityInput{
				UserID:     &userID,
				SessionID:  app.SessionID,
				Kind:       analyticsDomain.KindViewBusiness,
				BusinessID: &id,
				UserAgent:  "mosaic-cli/" + cli.Version,
			}); err != nil {
				return fmt.Errorf("record view: %w", err)
			}
		}
		return nil
	},
}

var businessUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a business listing",
	Long: `Update a business listing. Only the flags you pass are changed.

Examples:
  mosaic business update <id> --phone "404-555-0100" --verified`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		patch := patchFromFlags(cmd)
		b, err := app.Directory.UpdateBusiness(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated business %s (%s)\n", b.Name, b.ID)
		return nil
	},
}

var businessDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a business listing and its reviews",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireDirectory()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("business id", args[0])
		if err != nil {
			return err
		}

		if err := app.Directory.DeleteBusiness(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted business %s\n", id)
		return nil
	},
}

func patchFromFlags(cmd *cobra.Command) directoryApp.BusinessPatch {
	f := businessFlags
	var patch directoryApp.BusinessPatch
	str := func(name string, v string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	patch.Name = str("name", f.name)
	patch.Description = str("description", f.description)
	patch.Address = str("address", f.address)
	patch.City = str("city", f.city)
	patch.State = str("state", f.state)
	patch.ZipCode = str("zip", f.zip)
	patch.Phone = str("phone", f.phone)
	patch.Website = str("website", f.website)
	patch.Category = str("category", f.category)
	patch.MinorityType = str("minority-type", f.minority)
	patch.GooglePlaceID = str("place-id", f.placeID)
	patch.ImageURL = str("image-url", f.imageURL)
	patch.Hours = str("hours", f.hours)
	if cmd.Flags().Changed("lat") {
		patch.Latitude = &f.latitude
	}
	if cmd.Flags().Changed("lng") {
		patch.Longitude = &f.longitude
	}
	if cmd.Flags().Changed("verified") {
		patch.Verified = &f.verified
	}
	return patch
}

func init() {
	for _, c := range []*cobra.Command{businessAddCmd, businessUpdateCmd} {
		fs := c.Flags()
		fs.StringVar(&businessFlags.name, "name", "", "business name")
		fs.StringVar(&businessFlags.description, "description", "", "short description")
		fs.StringVar(&businessFlags.address, "address", "", "street address")
		fs.StringVar(&businessFlags.city, "city", "", "city")
		fs.StringVar(&businessFlags.state, "state", "", "state")
		fs.StringVar(&businessFlags.zip, "zip", "", "zip code")
		fs.StringVar(&businessFlags.phone, "phone", "", "phone number")
		fs.StringVar(&businessFlags.website, "website", "", "website URL")
		fs.StringVar(&businessFlags.category, "category", "", "category, e.g. Restaurant")
		fs.StringVar(&businessFlags.minority, "minority-type", "", "ownership, e.g. Black-owned")
		fs.StringVar(&businessFlags.placeID, "place-id", "", "Google place id")
		fs.StringVar(&businessFlags.imageURL, "image-url", "", "image URL")
		fs.StringVar(&businessFlags.hours, "hours", "", "opening hours")
		fs.Float64Var(&businessFlags.latitude, "lat", 0, "latitude")
		fs.Float64Var(&businessFlags.longitude, "lng", 0, "longitude")
	}
	businessUpdateCmd.Flags().BoolVar(&businessFlags.verified, "verified", false, "mark the listing verified")
}
