package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/sitepulse/internal/config"
)

// Cfg holds the configuration loaded before any command runs.
var Cfg *config.Config

// RootCmd is the base command for the CLI application.
// Subcommands (run-server, migrate, stats, record-activity) register themselves in their own init().
var RootCmd = &cobra.Command{
	Use:   "sitepulse",
	Short: "Visitor and activity analytics for a content site",
	Long: `sitepulse ingests page views and heartbeats from the site's tracking beacon,
records engagement activities, and serves the consolidated dashboard statistics.`,
}

// Execute is the main entry point for the Cobra application, called from main.go.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig runs before every command. A configuration the server cannot start with
// stops the program here.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
}
