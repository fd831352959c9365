package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/axellelanca/sitepulse/cmd"
	"github.com/axellelanca/sitepulse/internal/database"
)

// MigrateCmd represents the 'migrate' command
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or updates the visitors and activities schema.",
	Long: `This command connects to the configured database and prepares it:
GORM automatic migrations for sqlite and postgres, index creation for mongo.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg := cmd.Cfg

		stores, err := database.Open(context.Background(), cfg)
		if err != nil {
			log.Fatalf("Failed to migrate %s database: %v", cfg.Database.Driver, err)
		}
		defer stores.Close()

		fmt.Printf("Database migrations executed successfully (%s).\n", cfg.Database.Driver)
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
