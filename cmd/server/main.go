/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Resolve the civil time zone and aggregation policy
  3. Open the store (SQLite or MongoDB)
  4. Wire the attendance service, photo store and token authority
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -driver       sqlite | mongo (default: sqlite)
  -db           SQLite database path (default: worktime.db)
                Use ":memory:" for in-memory database
  -mongo-uri    MongoDB connection string
  -tz           IANA time zone (default: Asia/Kolkata)
  -policy       Aggregation policy JSON file
  -seed-admin   Create or replace admin@example.com and exit
  -demo         Mount the demo scenario endpoints
  See config/config.go for the full list and matching env variables.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  JWT_SECRET=dev ./server -db="./data/worktime.db"

  # Bootstrap the admin account
  JWT_SECRET=dev ./server -seed-admin -admin-password=changeme

  # Run against MongoDB with the capped-shift rules
  JWT_SECRET=dev ./server -driver=mongo -policy=./capped.json

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/sqlite/sqlite.go, store/mongo/mongo.go: Store implementations
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/warp/worktime-engine/api"
	"github.com/warp/worktime-engine/attendance"
	"github.com/warp/worktime-engine/config"
	"github.com/warp/worktime-engine/evidence"
	"github.com/warp/worktime-engine/factory"
	"github.com/warp/worktime-engine/store/mongo"
	"github.com/warp/worktime-engine/store/sqlite"
	"github.com/warp/worktime-engine/worktime"
)

// store is what both backends provide.
type store interface {
	worktime.Store
	worktime.UserStore
	io.Closer
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	policy := worktime.CanonicalPolicy()
	if cfg.PolicyFile != "" {
		if policy, err = factory.NewPolicyFactory().LoadFile(cfg.PolicyFile); err != nil {
			log.Fatalf("Failed to load policy: %v", err)
		}
	}
	agg, err := worktime.NewAggregator(policy)
	if err != nil {
		log.Fatalf("Invalid policy: %v", err)
	}
	log.Printf("[Server] Aggregation policy: %s, time zone: %s", policy.Name, loc)

	// Initialize store
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	svc := attendance.NewService(st, st, worktime.NewClock(loc), agg)

	if cfg.SeedAdmin {
		admin, err := svc.SeedAdmin(context.Background(), attendance.DefaultAdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
		log.Printf("[Server] Admin ready: %s", admin.Email)
		return
	}

	photos, err := evidence.NewDiskStore(cfg.PhotoDir, "/uploads")
	if err != nil {
		log.Fatalf("Failed to prepare photo store: %v", err)
	}

	// Initialize handler
	handler := api.NewHandler(svc, photos, api.NewAuth(cfg.JWTSecret, cfg.TokenTTL))

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		PhotoDir:        cfg.PhotoDir,
		PhotoURLPrefix:  "/uploads",
		EnableScenarios: cfg.LoadDemoScenarios,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[Server] Starting on http://localhost:%d (store: %s)", cfg.Port, cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return sqlite.New(cfg.DBPath)
	}
}
