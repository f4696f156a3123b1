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

	"github.com/Xecades/ArxivDigest-Reimagined/internal/bootstrap"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/config"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/observability/logging"
)

// A digest run holds many crawler and reasoning-service calls; the
// deadline covers the whole batch, not a single request.
const runTimeout = 2 * time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(cfg.Service+"-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.PipelineMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATS.Subject)
	err = app.Queue.SubscribeRunRequested(ctx, func(handlerCtx context.Context, runID string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, runTimeout)
		defer cancel()

		app.PipelineMetrics.StartRun()
		start := time.Now()
		runErr := app.Runner.RunByID(runCtx, runID)
		app.PipelineMetrics.FinishRun(cfg.Service, time.Since(start), runErr)
		return runErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
