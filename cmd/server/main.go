/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the unit conversion engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (master data)
  3. Optionally seed a demo scenario
  4. Build the engine from the default or file configuration
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: uom.db)
              Use ":memory:" for in-memory database
  -config     Engine config file, JSON or YAML (default: built-in tables)
  -seed       Demo scenario to load at startup, e.g. "lubricants"
  -log-level  debug, info, warn or error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and custom aliases
  ./server -db="./data/uom.db" -config=./engine.yaml

  # Demo mode
  ./server -db=":memory:" -seed=lubricants -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - factory/config.go: Engine config documents
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/uom-engine/api"
	"github.com/warp/uom-engine/conversion"
	"github.com/warp/uom-engine/factory"
	"github.com/warp/uom-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "uom.db", "SQLite database path")
	configPath := flag.String("config", "", "Engine config file (JSON or YAML)")
	seed := flag.String("seed", "", "Demo scenario to load at startup")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("Invalid -log-level %q: %v", *logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed != "" {
		if err := api.SeedScenario(context.Background(), store, *seed); err != nil {
			log.Fatalf("Failed to seed scenario: %v", err)
		}
		log.Printf("Seeded scenario %q", *seed)
	}

	// Engine configuration
	cfg := conversion.DefaultConfig()
	if *configPath != "" {
		cfg, err = factory.LoadConfigFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load engine config: %v", err)
		}
	}
	engine := conversion.New(store,
		conversion.WithConfig(cfg),
		conversion.WithLogger(logger.With("component", "conversion")),
	)

	handler := api.NewHandler(store, engine, logger.With("component", "api"))
	if *seed != "" {
		handler.SetCurrentScenario(*seed)
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (engine %s)", *port, engine.Version())
		log.Printf("API available at http://localhost:%d/api, metrics at /metrics", *port)
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
