package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/axellelanca/sitepulse/cmd"
	"github.com/axellelanca/sitepulse/internal/api"
	"github.com/axellelanca/sitepulse/internal/database"
	"github.com/axellelanca/sitepulse/internal/geo"
	"github.com/axellelanca/sitepulse/internal/models"
	"github.com/axellelanca/sitepulse/internal/monitor"
	"github.com/axellelanca/sitepulse/internal/services"
	"github.com/axellelanca/sitepulse/internal/workers"
)

const shutdownTimeout = 10 * time.Second

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the analytics API server and its background processes.",
	Long: `This command opens the configured database, starts the activity workers
and the presence monitor, then serves the HTTP API until SIGINT or SIGTERM.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg := cmd.Cfg
		gin.SetMode(cfg.Server.Mode)

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		stores, err := database.Open(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open %s database: %v", cfg.Database.Driver, err)
		}
		defer func() {
			if err := stores.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			}
		}()
		log.Printf("Repositories initialised on %s.", cfg.Database.Driver)

		cache := geo.NewMemoryCache(cfg.GeoCacheTTL(), cfg.Geo.CacheMaxEntries)
		resolver := geo.NewResolver(cache, cfg.Geo.Endpoint, cfg.GeoTimeout())

		visitorService := services.NewVisitorService(stores.Visitors, resolver, cfg.OnlineWindow())
		statsService := services.NewStatsService(stores.Visitors, stores.Activities, cfg.OnlineWindow())
		activityService := services.NewActivityService(stores.Activities, resolver)
		log.Println("Services initialised.")

		activityEvents := make(chan models.ActivityEvent, cfg.Analytics.BufferSize)
		workersDone := workers.StartActivityWorkers(cfg.Analytics.WorkerCount, activityEvents, activityService)
		log.Printf("Activity channel initialised with a buffer of %d. %d worker(s) started.",
			cfg.Analytics.BufferSize, cfg.Analytics.WorkerCount)

		presenceMonitor := monitor.NewPresenceMonitor(stores.Visitors, resolver.Cache(), cfg.MonitorInterval(), cfg.OnlineWindow())
		go presenceMonitor.Start(ctx)

		router := gin.Default()
		api.SetupRoutes(router, visitorService, statsService, activityService, activityEvents)
		log.Println("API routes configured.")

		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		go func() {
			log.Printf("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received. Stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		// No handler can send anymore; let the workers drain what is buffered.
		stop()
		close(activityEvents)
		workersDone.Wait()

		log.Println("Server stopped cleanly.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
