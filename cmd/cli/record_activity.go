package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/sitepulse/cmd"
	"github.com/axellelanca/sitepulse/internal/database"
	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/services"
)

var (
	activityTypeFlag string
	displayNameFlag  string
	targetSlugFlag   string
	cityFlag         string
	searchQueryFlag  string
	publicFlag       bool
)

// RecordActivityCmd représente la commande 'record-activity'
var RecordActivityCmd = &cobra.Command{
	Use:   "record-activity",
	Short: "Records an activity directly, bypassing the HTTP API.",
	Long: `This command stores one activity synchronously and prints its id.

Example:
  sitepulse record-activity --type=reaction --name="Nino" --slug=hello-world --public`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg := cmd.Cfg
		ctx := context.Background()

		stores, err := database.Open(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open %s database: %v", cfg.Database.Driver, err)
		}
		defer stores.Close()

		resolver := geo.NewResolver(geo.NewMemoryCache(cfg.GeoCacheTTL(), cfg.Geo.CacheMaxEntries), cfg.Geo.Endpoint, cfg.GeoTimeout())
		activityService := services.NewActivityService(stores.Activities, resolver)

		event := models.ActivityEvent{
			Type:        activityTypeFlag,
			IsPublic:    publicFlag,
			DisplayName: displayNameFlag,
			City:        cityFlag,
			TargetSlug:  targetSlugFlag,
		}
		if searchQueryFlag != "" {
			event.Metadata = map[string]interface{}{"query": searchQueryFlag}
		}

		activity, err := activityService.Record(ctx, event)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Activity recorded:\n")
		fmt.Printf("ID: %s\n", activity.ID)
		fmt.Printf("Type: %s, city: %s, public: %t\n", activity.Type, activity.City, activity.IsPublic)
	},
}

func init() {
	RecordActivityCmd.Flags().StringVar(&activityTypeFlag, "type", "", "activity type (reaction, search, signup...)")
	RecordActivityCmd.Flags().StringVar(&displayNameFlag, "name", "", "display name shown in the public feed")
	RecordActivityCmd.Flags().StringVar(&targetSlugFlag, "slug", "", "slug of the content the activity targets")
	RecordActivityCmd.Flags().StringVar(&cityFlag, "city", "", "city; a local city is picked when empty")
	RecordActivityCmd.Flags().StringVar(&searchQueryFlag, "query", "", "search query, stored as metadata.query")
	RecordActivityCmd.Flags().BoolVar(&publicFlag, "public", false, "show the activity in the public feed")

	RecordActivityCmd.MarkFlagRequired("type")

	cmd.RootCmd.AddCommand(RecordActivityCmd)
}
