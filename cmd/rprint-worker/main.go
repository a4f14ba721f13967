package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orrn/rprint/internal/config"
	"github.com/orrn/rprint/internal/logger"
	"github.com/orrn/rprint/internal/render"
	"github.com/orrn/rprint/internal/worker"
)

func main() {
	configPath := flag.String("config", "worker.yaml", "path to the worker config file")
	flag.Parse()

	cfg, err := config.LoadWorker(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("rprint-worker", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := render.ExecRunner{Timeout: cfg.Render.ToolTimeout}
	pipeline := render.NewPipeline(cfg.Render, runner, render.PDFCPUSizer{})
	discoverer := worker.NewCUPSDiscoverer(runner, cfg.Render.LPStatPath, cfg.Render.LPOptionsPath)
	client := worker.NewClient(cfg.ServerURL, cfg.Credential, cfg.Intervals.RequestTimeout, cfg.Intervals.DownloadTimeout)

	agent := worker.NewAgent(cfg, client, discoverer, pipeline)
	if err := agent.Run(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("worker agent failed")
	}
	logger.Log.Info().Msg("worker stopped")
}
