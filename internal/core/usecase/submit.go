package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

// SubmitDocumentUseCase handles uploads: store the file, create the document,
// enqueue exactly one job and bring the owning request aggregate up to date.
type SubmitDocumentUseCase struct {
	docs     ports.DocumentRepository
	requests ports.RequestRepository
	jobs     ports.JobRepository
	storage  ports.ObjectStorage
	queue    ports.JobQueue
	audit    *AuditRecorder
}

func NewSubmitDocumentUseCase(
	docs ports.DocumentRepository,
	requests ports.RequestRepository,
	jobs ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.JobQueue,
	audit *AuditRecorder,
) *SubmitDocumentUseCase {
	return &SubmitDocumentUseCase{
		docs:     docs,
		requests: requests,
		jobs:     jobs,
		storage:  storage,
		queue:    queue,
		audit:    audit,
	}
}

func (uc *SubmitDocumentUseCase) CreateRequest(ctx context.Context, userID, name string) (*domain.Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create request", fmt.Errorf("user id is required"))
	}

	now := time.Now().UTC()
	req := &domain.Request{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Status:    domain.ReqStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (uc *SubmitDocumentUseCase) Upload(ctx context.Context, in ports.UploadInput) (*domain.Document, error) {
	if in.RequestID != nil {
		if _, err := uc.requests.GetByID(ctx, *in.RequestID); err != nil {
			return nil, fmt.Errorf("resolve owning request: %w", err)
		}
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(in.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, in.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		RequestID:   in.RequestID,
		UserID:      in.UserID,
		VendorID:    in.VendorID,
		Filename:    in.Filename,
		MimeType:    in.MimeType,
		StoragePath: storageKey,
		Status:      domain.DocStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.submitJob(ctx, doc, nil); err != nil {
		return nil, err
	}
	doc.Status = domain.DocStatusQueued

	uc.audit.Record(ctx, in.UserID, domain.AuditDocumentUploaded, "document", doc.ID, map[string]any{
		"filename": in.Filename,
	})

	if err := recomputeRequestAggregate(ctx, uc.docs, uc.requests, doc.RequestID); err != nil {
		return nil, err
	}
	return doc, nil
}

// submitJob creates the durable job record and publishes the queue message.
// The job row enforces one active job per document; a duplicate submission
// surfaces as ErrInvalidInput from the repository.
func (uc *SubmitDocumentUseCase) submitJob(ctx context.Context, doc *domain.Document, vendorOverride *string) error {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		UserID:           doc.UserID,
		VendorIDOverride: vendorOverride,
		Status:           domain.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("create job record: %w", err)
	}

	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.DocStatusQueued, ""); err != nil {
		return fmt.Errorf("set status=queued: %w", err)
	}

	return enqueueJob(ctx, uc.jobs, uc.docs, uc.queue, job, domain.JobPayload{
		JobID:            job.ID,
		DocumentID:       doc.ID,
		UserID:           doc.UserID,
		VendorIDOverride: vendorOverride,
		Attempt:          0,
	})
}

// enqueueJob publishes the payload for a freshly created job row. A failed
// publish must not leave the row open: the document would sit at queued with
// no message behind it, the open-job index would block any new job and the
// external retry path rejects non-failure statuses. The compensation finishes
// the job as failed and marks the document failed so it stays retryable.
func enqueueJob(
	ctx context.Context,
	jobs ports.JobRepository,
	docs ports.DocumentRepository,
	queue ports.JobQueue,
	job *domain.Job,
	payload domain.JobPayload,
) error {
	err := queue.Publish(ctx, payload)
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf("publish job: %v", err)
	if finErr := jobs.Finish(ctx, job.ID, domain.JobStatusFailed, domain.JobResult{
		Success:    false,
		DocumentID: job.DocumentID,
		Error:      msg,
	}); finErr != nil {
		return fmt.Errorf("publish job: %w; finish job: %v", err, finErr)
	}
	if failErr := docs.MarkFailed(ctx, job.DocumentID, msg); failErr != nil {
		return fmt.Errorf("publish job: %w; mark failed status: %v", err, failErr)
	}
	return fmt.Errorf("publish job: %w", err)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
