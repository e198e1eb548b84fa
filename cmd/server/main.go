/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the enrollment engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration
  2. Configure structured logging
  3. Open SQLite store
  4. Select receipt object store (memory or S3)
  5. Build engine service, handler, router
  6. Start server with graceful shutdown

CONFIGURATION (environment):
  HTTP_ADDR          listen address        (default :8080)
  DB_PATH            SQLite database path  (default smartlabs.db)
  RECEIPTS_BACKEND   "memory" or "s3"      (default memory)
  S3_*               S3 settings when RECEIPTS_BACKEND=s3
  LOG_LEVEL          zerolog level         (default info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database, exit.

SEE ALSO:
  - config/config.go: Environment settings
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/esystemlk/lms-smartlabs-sub000/api"
	"github.com/esystemlk/lms-smartlabs-sub000/config"
	"github.com/esystemlk/lms-smartlabs-sub000/engine"
	"github.com/esystemlk/lms-smartlabs-sub000/storage"
	"github.com/esystemlk/lms-smartlabs-sub000/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer store.Close()

	var receipts storage.Storage
	switch cfg.ReceiptsBackend {
	case "s3":
		receipts, err = storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure S3 receipt storage")
		}
	default:
		receipts = storage.NewMemory()
	}

	service := engine.NewService(store, receipts, engine.SystemClock{}, log)
	handler := api.NewHandler(service, store, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}
