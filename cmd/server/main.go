/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the clinic attendance and jaspel engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store and seed preset shifts / rate cards
  3. Create API handler with dependencies
  4. With REDIS_ADDR: swap in the Redis report cache, enqueue validation
     notifications on asynq and run the notification worker
  5. Start the nightly recompute scheduler
  6. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port               HTTP server port (default: 8080)
  -db                 SQLite database path (default: jaspel.db)
                      Use ":memory:" for in-memory database
  -tz                 Local zone for all dates (default: Asia/Jakarta)
  -redis              Redis address, empty disables cache and queue
  -recompute-cron     Nightly recompute schedule
  -recompute-workers  Recompute worker pool size
  -scheduler          Run the nightly recompute
  -dev                Enable /api/reset and /api/scenarios

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush pending notifications, stop the worker
  4. Close Redis and database connections

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/warp/jaspel-engine/api"
	"github.com/warp/jaspel-engine/config"
	"github.com/warp/jaspel-engine/events"
	"github.com/warp/jaspel-engine/generic"
	"github.com/warp/jaspel-engine/reporting/rediscache"
	"github.com/warp/jaspel-engine/store/sqlite"
	"github.com/warp/jaspel-engine/validation"
)

func main() {
	cfg := config.Load()
	cfg.BindFlags(flag.CommandLine)
	dev := flag.Bool("dev", false, "Enable reset and demo scenario endpoints")
	flag.Parse()

	clock, err := cfg.Clock()
	if err != nil {
		log.Fatalf("Invalid time zone %q: %v", cfg.Timezone, err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, sqlite.WithLocation(clock.Location()))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, clock)
	handler.Reporter.TTL = cfg.ReportCacheTTL
	handler.Scheduler.Recomputer.Workers = cfg.RecomputeWorkers
	if err := handler.SeedPresets(context.Background()); err != nil {
		log.Printf("Warning: Failed to seed presets: %v", err)
	}

	// Redis: report cache and notification queue
	var sink generic.EventSink = events.Multi{store, events.LogSink{}}
	var worker *asynq.Server
	if cfg.RedisAddr != "" {
		rdb, err := rediscache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()

		cache := rediscache.New(rdb, "jaspel")
		handler.Reporter.Cache = cache
		handler.Invalidator.Cache = cache

		opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		client := asynq.NewClient(opt)
		defer client.Close()
		sink = events.Multi{store, events.NewAsynqSink(client)}

		worker = startWorker(opt)
		log.Printf("[Main] Redis enabled at %s", cfg.RedisAddr)
	}
	async := events.NewAsync(sink, 10*time.Second, nil)
	handler.Validation = validation.NewService(store, async, clock, nil)

	// Nightly recompute
	scheduler := handler.Scheduler
	scheduler.Spec = cfg.RecomputeCron
	scheduler.Enabled = cfg.SchedulerEnabled
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		JWTSecret:      cfg.JWTSecret,
		EnableReset:    *dev,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[Main] Server starting on http://localhost:%d (zone %s)", cfg.Port, clock.Location())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	async.Close()
	if worker != nil {
		worker.Shutdown()
	}

	log.Println("Server stopped")
}

// startWorker runs the notification worker in-process. Messages go to the
// log until a Telegram notifier is configured.
func startWorker(opt asynq.RedisClientOpt) *asynq.Server {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{events.NotifyQueue: 1},
	})
	if err := srv.Start(events.NewServeMux(events.LogNotifier{}, nil)); err != nil {
		log.Fatalf("Failed to start notification worker: %v", err)
	}
	log.Printf("[Main] Notification worker started on queue %s", events.NotifyQueue)
	return srv
}
