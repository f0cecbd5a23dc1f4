package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

// RetryDocumentUseCase is the explicit external retry: a terminally failed
// document goes back to queued with an incremented retry count and a fresh
// job.
type RetryDocumentUseCase struct {
	docs     ports.DocumentRepository
	requests ports.RequestRepository
	jobs     ports.JobRepository
	queue    ports.JobQueue
	audit    *AuditRecorder
}

func NewRetryDocumentUseCase(
	docs ports.DocumentRepository,
	requests ports.RequestRepository,
	jobs ports.JobRepository,
	queue ports.JobQueue,
	audit *AuditRecorder,
) *RetryDocumentUseCase {
	return &RetryDocumentUseCase{
		docs:     docs,
		requests: requests,
		jobs:     jobs,
		queue:    queue,
		audit:    audit,
	}
}

func (uc *RetryDocumentUseCase) Retry(ctx context.Context, userID, documentID string) (*domain.Job, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if !doc.Status.IsFailure() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retry document",
			fmt.Errorf("status %s is not retryable", doc.Status))
	}

	if err := uc.docs.ResetForRetry(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("reset document for retry: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Status:     domain.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create retry job: %w", err)
	}

	if err := enqueueJob(ctx, uc.jobs, uc.docs, uc.queue, job, domain.JobPayload{
		JobID:      job.ID,
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Attempt:    0,
	}); err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, userID, domain.AuditDocumentRetried, "document", doc.ID, map[string]any{
		"retry_count": doc.RetryCount + 1,
	})

	if err := recomputeRequestAggregate(ctx, uc.docs, uc.requests, doc.RequestID); err != nil {
		return nil, err
	}
	return job, nil
}
