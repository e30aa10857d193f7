package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwlim/sectorpulse/internal/api"
	"github.com/jwlim/sectorpulse/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                  - Health check
  GET  /api/data/{kind}         - Query cached rows, filling from the provider on miss
  GET  /api/data/{kind}/spans   - Cached min/max date per entity
  POST /api/collect             - Trigger a collection run
  GET  /api/rank                - Relative-strength ranking
  GET  /api/velocity            - Ranking with rank changes vs prior sessions

Example:
  go run ./cmd/sectorpulse api
  go run ./cmd/sectorpulse api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	dataHandler := handlers.NewDataHandler(d.cache, d.store, d.col, d.cfg, d.log)
	rankingHandler := handlers.NewRankingHandler(d.engine, d.composer, d.cfg, d.log)

	router := api.NewRouter(dataHandler, rankingHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	go func() {
		if err := server.Start(); err != nil {
			d.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", d.cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
