package ports

import (
	"context"
	"io"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
)

// DocumentRepository persists document state. Status writes other than the
// initial create and the explicit retry reset belong to the worker alone.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	SaveExtraction(ctx context.Context, id string, record domain.ExtractedRecord, rawText, rawResponse string) error
	SaveValidationFailure(ctx context.Context, id string, record domain.ExtractedRecord, rawText, rawResponse string, violations []string) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
	ResetForRetry(ctx context.Context, id string) error
}

// RequestRepository persists requests and their derived aggregate.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	UpdateAggregate(ctx context.Context, id string, status domain.RequestStatus, counts domain.StatusCounts, stats domain.RequestStats) error
}

// TemplateRepository persists vendor templates. Activate must deactivate the
// target's siblings in the same transaction.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *domain.VendorTemplate) error
	GetByID(ctx context.Context, id string) (*domain.VendorTemplate, error)
	GetActiveByVendor(ctx context.Context, vendorID string) (*domain.VendorTemplate, error)
	Activate(ctx context.Context, id string) error
}

// JobRepository is the durable job record: attempts, diagnostics and the
// terminal result, which is written exactly once.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetActiveByDocument(ctx context.Context, documentID string) (*domain.Job, error)
	MarkActive(ctx context.Context, id string, attempt int) error
	RecordAttemptError(ctx context.Context, id string, attempt int, errMessage string) error
	Finish(ctx context.Context, id string, status domain.JobStatus, result domain.JobResult) error
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time, keepLatest int) (int64, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobDisposition tells the queue what to do with a delivery.
type JobDisposition int

const (
	// JobAck removes the delivery; the job reached a terminal outcome.
	JobAck JobDisposition = iota
	// JobRetry requeues the delivery after the configured backoff.
	JobRetry
	// JobTerm drops the delivery without further attempts.
	JobTerm
)

// JobQueue is the durable ordered work list. Publishing is deduplicated by
// job id; the queue guarantees at most one active claim per job id.
type JobQueue interface {
	Publish(ctx context.Context, payload domain.JobPayload) error
	Consume(ctx context.Context, handler func(ctx context.Context, payload domain.JobPayload, attempt int) JobDisposition) error
}

// ObjectStorage stores source documents by opaque key.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor converts a stored binary document into linear text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// ExtractionProvider runs the model call and returns the raw structured
// response. Parsing and schema validation happen in the caller.
type ExtractionProvider interface {
	ExtractStructured(ctx context.Context, prompt string) (string, error)
}

// AuditSink accepts fire-and-forget event records. Implementations may fail;
// callers must never let that abort the pipeline.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// ReportExporter encodes a request and its documents into a downloadable
// report.
type ReportExporter interface {
	ExportRequest(req *domain.Request, docs []domain.Document) ([]byte, error)
}
