/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lesson studio engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config file
  2. Initialize SQLite store
  3. Start the snapshot pipeline over the store's change feed
  4. Start the cycle billing scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: studio.yaml; missing file is fine)
  -listen  Listen address, overrides config (e.g. ":8080")
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the billing scheduler and snapshot pipeline
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/studio.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on a different port
  ./server -listen=":3000"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/lesson-engine/api"
	"github.com/warp/lesson-engine/config"
	"github.com/warp/lesson-engine/store/sqlite"
	"github.com/warp/lesson-engine/view"
)

func main() {
	// Flags
	configPath := flag.String("config", "studio.yaml", "YAML config path")
	listen := flag.String("listen", "", "listen address, overrides config")
	dbPath := flag.String("db", "", "SQLite database path, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Snapshot pipeline over the store's change feed
	pipeline := view.NewPipeline(store)
	pipeCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()
	go func() {
		if err := pipeline.Run(pipeCtx, store); err != nil && pipeCtx.Err() == nil {
			log.Printf("Warning: snapshot pipeline stopped: %v", err)
		}
	}()

	// Cycle billing scheduler
	scheduler := api.NewBillingScheduler(store, store)
	scheduler.Spec = cfg.BillingCron
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start billing scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Initialize handler and router
	handler := api.NewHandler(store, store, pipeline)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost%s", cfg.Listen)
		log.Printf("📊 API available at http://localhost%s/api", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
