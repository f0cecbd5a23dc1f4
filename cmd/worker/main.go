package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vgrishin/docextract/internal/adapters/worker"
	"github.com/vgrishin/docextract/internal/bootstrap"
	"github.com/vgrishin/docextract/internal/config"
	"github.com/vgrishin/docextract/internal/infrastructure/export/xlsx"
	"github.com/vgrishin/docextract/internal/observability/logging"
	"github.com/vgrishin/docextract/internal/observability/metrics"
)

const serviceName = "docextract-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, xlsx.NewExporter())
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(workerMetrics),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	w := worker.New(
		serviceName,
		app.Queue,
		app.ProcessUC,
		app.Jobs,
		app.Documents,
		workerMetrics,
		cfg.JobMaxAttempts,
		time.Duration(cfg.JobTimeoutMs)*time.Millisecond,
		worker.RetentionPolicy{
			CompletedMaxAge:     time.Duration(cfg.RetentionCompletedHours) * time.Hour,
			CompletedKeepLatest: cfg.RetentionCompletedKeep,
			FailedMaxAge:        time.Duration(cfg.RetentionFailedHours) * time.Hour,
		},
	)

	log.Printf("worker consuming %s", cfg.NATSSubject)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics shutdown error: %v", err)
	}
}

func metricsMux(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
