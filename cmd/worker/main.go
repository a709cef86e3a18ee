package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/insurance-upsell/internal/bootstrap"
	"github.com/kirillkom/insurance-upsell/internal/config"
	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/observability/logging"
	"github.com/kirillkom/insurance-upsell/internal/observability/metrics"
)

const serviceName = "policy-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithIngestionObserver(workerMetrics))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestion(ctx, func(handlerCtx context.Context, event domain.IngestionEvent) error {
		if !event.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(time.Since(event.RequestedAt))
		}

		start := time.Now()
		workerMetrics.StartDocument()
		report, err := app.Ingestor.IngestDocument(handlerCtx, event.DocumentID)
		workerMetrics.FinishDocument(time.Since(start), err)

		if domain.IsKind(err, domain.ErrAlreadyProcessed) {
			slog.Info("ingest_skipped_already_processed", "document_id", event.DocumentID)
			return nil
		}
		if domain.IsKind(err, domain.ErrIngestionInProgress) {
			slog.Info("ingest_skipped_in_progress", "document_id", event.DocumentID)
			return nil
		}
		if err != nil {
			return err
		}
		slog.Info("ingest_completed",
			"document_id", report.DocumentID,
			"plan_id", event.PlanID,
			"chunks", report.Chunks,
			"batches", report.Batches,
			"duration_ms", report.Duration.Milliseconds(),
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
