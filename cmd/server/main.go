/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payout engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, config.yaml, .env, PAYOUT_* env)
  2. Build the logger
  3. Initialize SQLite store
  4. Wire the approver: Redis or in-process lock, optional Kafka publisher
  5. Configure HTTP router and the background refresh
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: search ./config.yaml, ./config/config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close the Kafka writer, Redis client and database
  5. Flush the logger

EXAMPLES:
  # Run with in-memory database and debug logs
  PAYOUT_DB_PATH=":memory:" PAYOUT_LOG_LEVEL=debug ./server

  # Run with a config file
  ./server -config=./deploy/config.yaml

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/warp/payout-engine/api"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/events"
	"github.com/warp/payout-engine/lock"
	"github.com/warp/payout-engine/logger"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("server exited", zap.Error(err))
		zlog.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	approver := payout.NewApprover(store, zlog)

	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		approver.Locker = lock.NewRedis(rdb, cfg.Redis.LockTTL, zlog)
		zlog.Info("approval lock: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		approver.Locker = lock.NewLocal()
		zlog.Info("approval lock: in-process")
	}

	if cfg.Kafka.Enabled {
		writer := events.NewWriter(cfg.Kafka.Brokers)
		defer func() {
			if err := writer.Close(); err != nil {
				zlog.Warn("close kafka writer", zap.Error(err))
			}
		}()
		approver.Publisher = events.NewKafkaPublisher(writer, cfg.Kafka.Topic)
		zlog.Info("approval events: kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	handler := api.NewHandler(store, approver, zlog)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	scheduler := api.NewRefreshScheduler(approver, payout.Actor{
		RestaurantID: payout.RestaurantID(cfg.Refresh.RestaurantID),
		UserID:       payout.UserID(cfg.Refresh.UserID),
	}, zlog)
	scheduler.Enabled = cfg.Refresh.Enabled
	scheduler.Interval = cfg.Refresh.Interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.DB.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("server stopped")
	return nil
}
