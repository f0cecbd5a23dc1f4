// Package worker drives the queue consumer: per-attempt timeouts, delivery
// dispositions, metrics and the retention sweep over finished jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
	"github.com/vgrishin/docextract/internal/observability/metrics"
)

type RetentionPolicy struct {
	CompletedMaxAge     time.Duration
	CompletedKeepLatest int
	FailedMaxAge        time.Duration
	SweepInterval       time.Duration
}

func (p RetentionPolicy) normalize() RetentionPolicy {
	if p.CompletedMaxAge <= 0 {
		p.CompletedMaxAge = 24 * time.Hour
	}
	if p.CompletedKeepLatest <= 0 {
		p.CompletedKeepLatest = 1000
	}
	if p.FailedMaxAge <= 0 {
		p.FailedMaxAge = 7 * 24 * time.Hour
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = time.Hour
	}
	return p
}

type Worker struct {
	service        string
	queue          ports.JobQueue
	processor      ports.JobProcessor
	jobs           ports.JobRepository
	docs           ports.DocumentRepository
	metrics        *metrics.WorkerMetrics
	maxAttempts    int
	attemptTimeout time.Duration
	retention      RetentionPolicy
}

func New(
	service string,
	queue ports.JobQueue,
	processor ports.JobProcessor,
	jobs ports.JobRepository,
	docs ports.DocumentRepository,
	workerMetrics *metrics.WorkerMetrics,
	maxAttempts int,
	attemptTimeout time.Duration,
	retention RetentionPolicy,
) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 2 * time.Minute
	}
	return &Worker{
		service:        service,
		queue:          queue,
		processor:      processor,
		jobs:           jobs,
		docs:           docs,
		metrics:        workerMetrics,
		maxAttempts:    maxAttempts,
		attemptTimeout: attemptTimeout,
		retention:      retention.normalize(),
	}
}

// Run consumes until ctx is cancelled. The retention sweeper runs alongside
// the consumer and stops with it.
func (w *Worker) Run(ctx context.Context) error {
	go w.sweepLoop(ctx)
	return w.queue.Consume(ctx, w.Handle)
}

// Handle processes one delivery and decides its disposition: a terminal
// outcome acks, a fatal or exhausted failure terminates, anything else goes
// back to the queue for the next attempt.
func (w *Worker) Handle(ctx context.Context, payload domain.JobPayload, attempt int) ports.JobDisposition {
	final := attempt >= w.maxAttempts
	start := time.Now()

	if w.metrics != nil {
		w.metrics.StartJob()
		if job, err := w.jobs.GetByID(ctx, payload.JobID); err == nil {
			w.metrics.ObserveQueueLag(w.service, start.Sub(job.CreatedAt))
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
	defer cancel()

	err := w.processor.ProcessJob(attemptCtx, payload, final)
	w.observe(ctx, payload, attempt, time.Since(start))

	if err == nil {
		slog.Info("job_attempt_done",
			"job_id", payload.JobID,
			"document_id", payload.DocumentID,
			"attempt", attempt,
		)
		return ports.JobAck
	}

	logAttrs := []any{
		"job_id", payload.JobID,
		"document_id", payload.DocumentID,
		"attempt", attempt,
		"max_attempts", w.maxAttempts,
		"error", err,
	}
	switch {
	case domain.IsKind(err, domain.ErrFatalConfig):
		slog.Error("job_aborted_fatal_config", logAttrs...)
		return ports.JobTerm
	case final:
		slog.Error("job_attempts_exhausted", logAttrs...)
		return ports.JobTerm
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("job_attempt_timeout", logAttrs...)
		return ports.JobRetry
	default:
		slog.Warn("job_attempt_failed", logAttrs...)
		return ports.JobRetry
	}
}

func (w *Worker) observe(ctx context.Context, payload domain.JobPayload, attempt int, duration time.Duration) {
	if w.metrics == nil {
		return
	}
	status := domain.DocStatusFailed
	if doc, err := w.docs.GetByID(ctx, payload.DocumentID); err == nil {
		status = doc.Status
		if status == domain.DocStatusValidationFailed {
			w.metrics.RecordViolations(w.service, len(doc.ValidationErrors))
		}
	}
	w.metrics.FinishJob(w.service, status, duration, attempt)
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.retention.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	now := time.Now().UTC()

	completed, err := w.jobs.DeleteCompletedBefore(ctx, now.Add(-w.retention.CompletedMaxAge), w.retention.CompletedKeepLatest)
	if err != nil {
		slog.Warn("retention_sweep_completed_failed", "error", err)
	} else if completed > 0 {
		slog.Info("retention_sweep", "status", domain.JobStatusCompleted, "deleted", completed)
		if w.metrics != nil {
			w.metrics.RecordRetentionSweep(w.service, domain.JobStatusCompleted, completed)
		}
	}

	failed, err := w.jobs.DeleteFailedBefore(ctx, now.Add(-w.retention.FailedMaxAge))
	if err != nil {
		slog.Warn("retention_sweep_failed_failed", "error", err)
	} else if failed > 0 {
		slog.Info("retention_sweep", "status", domain.JobStatusFailed, "deleted", failed)
		if w.metrics != nil {
			w.metrics.RecordRetentionSweep(w.service, domain.JobStatusFailed, failed)
		}
	}
}
