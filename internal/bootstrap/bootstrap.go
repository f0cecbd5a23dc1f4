// Package bootstrap wires the process dependency graph explicitly.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/vgrishin/docextract/internal/config"
	"github.com/vgrishin/docextract/internal/core/ports"
	"github.com/vgrishin/docextract/internal/core/usecase"
	"github.com/vgrishin/docextract/internal/infrastructure/extractor/doctext"
	"github.com/vgrishin/docextract/internal/infrastructure/llm/ollama"
	"github.com/vgrishin/docextract/internal/infrastructure/queue/jetstream"
	"github.com/vgrishin/docextract/internal/infrastructure/repository/postgres"
	"github.com/vgrishin/docextract/internal/infrastructure/resilience"
	"github.com/vgrishin/docextract/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.JobQueue
	Documents ports.DocumentRepository
	Requests  ports.RequestRepository
	Templates ports.TemplateRepository
	Jobs      ports.JobRepository
	Exporter  ports.ReportExporter

	SubmitUC   ports.DocumentSubmitter
	ProcessUC  ports.JobProcessor
	RetryUC    ports.DocumentRetrier
	TemplateUC ports.TemplateActivator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, exporter ports.ReportExporter) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	requests := postgres.NewRequestRepository(db)
	templates := postgres.NewTemplateRepository(db)
	jobs := postgres.NewJobRepository(db)
	audit := usecase.NewAuditRecorder(postgres.NewAuditRepository(db))

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := jetstream.New(cfg.NATSURL, jetstream.Options{
		Stream:         cfg.NATSStream,
		Subject:        cfg.NATSSubject,
		Durable:        cfg.QueueName,
		MaxAttempts:    cfg.JobMaxAttempts,
		BackoffKind:    resilience.BackoffKind(cfg.JobBackoffKind),
		BackoffBase:    time.Duration(cfg.JobBackoffBaseMs) * time.Millisecond,
		BackoffCeiling: time.Duration(cfg.JobBackoffCeilingMs) * time.Millisecond,
		AckWait:        time.Duration(cfg.JobTimeoutMs)*time.Millisecond + 30*time.Second,
		Executor:       executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	provider, err := ollama.New(cfg.OllamaURL, ollama.Options{
		Model:             cfg.OllamaModel,
		RequestTimeout:    time.Duration(cfg.JobTimeoutMs) * time.Millisecond,
		RequestsPerSecond: cfg.OllamaRequestsSec,
		Executor:          executor,
	})
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init extraction provider: %w", err)
	}

	extractor := doctext.NewExtractor(storage)

	submitUC := usecase.NewSubmitDocumentUseCase(docs, requests, jobs, storage, queue, audit)
	processUC := usecase.NewProcessJobUseCase(docs, requests, templates, jobs, extractor, provider, audit)
	retryUC := usecase.NewRetryDocumentUseCase(docs, requests, jobs, queue, audit)
	templateUC := usecase.NewActivateTemplateUseCase(templates, audit)

	return &App{
		Config: cfg,

		Queue:     queue,
		Documents: docs,
		Requests:  requests,
		Templates: templates,
		Jobs:      jobs,
		Exporter:  exporter,

		SubmitUC:   submitUC,
		ProcessUC:  processUC,
		RetryUC:    retryUC,
		TemplateUC: templateUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
