package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/rprint/internal/api"
	"github.com/orrn/rprint/internal/config"
	"github.com/orrn/rprint/internal/core"
	"github.com/orrn/rprint/internal/db"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/storage"
	"github.com/orrn/rprint/internal/storage/local"
	"github.com/orrn/rprint/internal/storage/minio"
	"github.com/orrn/rprint/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the server config file")
	createWorker := flag.String("create-worker", "", "register a worker with this name, print its credential and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("rprint-server", cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, db.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	workers := core.NewWorkerService(store, cfg.Auth.CredentialCacheSize, cfg.Auth.CredentialCacheTTL)

	if *createWorker != "" {
		w, credential, err := workers.Register(ctx, *createWorker)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register worker")
		}
		fmt.Printf("worker id:  %s\ncredential: %s\n", w.ID, credential)
		return
	}

	blobs, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob storage")
	}

	notifier := webhook.NewNotifier(store, webhook.Config{
		Timeout: cfg.Webhook.Timeout,
	})
	jobs := core.NewJobService(store, blobs, notifier)
	printers := core.NewPrinterService(store)

	monitor := core.NewMonitor(store, cfg.Heartbeat.SweepInterval, cfg.Heartbeat.Timeout)
	monitor.Start(ctx)

	janitor := core.NewJanitor(store, blobs, cfg.Janitor.Interval)
	janitor.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		MaxUploadBytes: cfg.Uploads.MaxSizeMB << 20,
	}, api.Services{Jobs: jobs, Printers: printers, Workers: workers})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	monitor.Stop()
	janitor.Stop()

	done := make(chan struct{})
	go func() {
		jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("server shutdown gracefully")
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for webhook deliveries")
	}
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.Blob, error) {
	switch cfg.Driver {
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return local.New(cfg.Path)
	}
}
