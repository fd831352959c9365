package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/sitepulse/cmd"
	"github.com/axellelanca/sitepulse/internal/database"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/services"
)

var (
	periodFlag string
	jsonFlag   bool
)

// StatsCmd représente la commande 'stats'
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints the dashboard statistics for a period",
	Long: `Builds the same report as GET /api/stats and prints a summary.

Example:
  sitepulse stats --period=week`,
	Args: cobra.NoArgs,
	Run:  runStats,
}

func init() {
	StatsCmd.Flags().StringVar(&periodFlag, "period", "", "today, week, month or year (all time when empty)")
	StatsCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full report as JSON")
	cmd.RootCmd.AddCommand(StatsCmd)
}

// runStats exécute la logique pour la commande stats
func runStats(cobraCmd *cobra.Command, args []string) {
	cfg := cmd.Cfg
	ctx := context.Background()

	stores, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s database: %v", cfg.Database.Driver, err)
	}
	defer stores.Close()

	statsService := services.NewStatsService(stores.Visitors, stores.Activities, cfg.OnlineWindow())
	stats, err := statsService.GetStats(ctx, periodFlag)
	if err != nil {
		fmt.Printf("Error retrieving statistics: %v\n", err)
		os.Exit(1)
	}

	if jsonFlag {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(stats); err != nil {
			log.Fatalf("Failed to encode statistics: %v", err)
		}
		return
	}
	printStats(stats)
}

func printStats(stats *models.Stats) {
	fmt.Printf("Statistics for period: %s (generated %s)\n", stats.Period, stats.GeneratedAt.Format(time.DateTime))
	fmt.Printf("Online now: %d\n", stats.Online)
	fmt.Printf("Visitors: %d, page views: %d, activities: %d\n", stats.TotalVisitors, stats.TotalPageViews, stats.TotalActivities)
	fmt.Printf("Bounce rate: %d%%, average session: %ds\n", stats.BounceRate, stats.AvgSessionDuration)
	fmt.Printf("Devices: desktop %d (%d%%), mobile %d (%d%%), tablet %d (%d%%)\n",
		stats.Devices.Desktop, stats.Devices.DesktopPercentage,
		stats.Devices.Mobile, stats.Devices.MobilePercentage,
		stats.Devices.Tablet, stats.Devices.TabletPercentage)

	fmt.Println("Top countries:")
	for _, c := range stats.Countries {
		fmt.Printf("  %-4s %6d  %3d%%\n", c.Code, c.Count, c.Percentage)
	}
	fmt.Println("Top cities:")
	for _, c := range stats.Cities {
		fmt.Printf("  %-16s %6d  %3d%%\n", c.Name, c.Count, c.Percentage)
	}
	fmt.Println("Traffic sources:")
	for _, s := range stats.TrafficSources {
		fmt.Printf("  %-24s %6d  %3d%%\n", s.Source, s.Count, s.Percentage)
	}
	fmt.Println("Last 7 days:")
	for _, d := range stats.DailyData {
		fmt.Printf("  %s  visitors %d, page views %d\n", d.Date, d.Visitors, d.PageViews)
	}
	if len(stats.TopSearches) > 0 {
		fmt.Println("Top searches:")
		for _, s := range stats.TopSearches {
			fmt.Printf("  %-24s %6d\n", s.Term, s.Count)
		}
	}
}
