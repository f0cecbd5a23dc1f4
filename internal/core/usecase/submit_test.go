package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

func TestUploadCreatesDocumentAndPublishesJob(t *testing.T) {
	docs := &docRepoFake{}
	jobs := &jobRepoFake{}
	queue := &queueFake{}
	storage := &storageFake{}
	uc := NewSubmitDocumentUseCase(docs, &reqRepoFake{}, jobs, storage, queue, NewAuditRecorder(&auditFake{}))

	doc, err := uc.Upload(context.Background(), ports.UploadInput{
		UserID:   "u-1",
		Filename: "march invoice.pdf",
		MimeType: "application/pdf",
		Body:     strings.NewReader("%PDF-1.7"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.DocStatusQueued {
		t.Fatalf("expected queued document, got %s", doc.Status)
	}
	if docs.created == nil || docs.created.Status != domain.DocStatusPending {
		t.Fatalf("document must be created pending before submission")
	}
	if len(jobs.created) != 1 || jobs.created[0].DocumentID != doc.ID {
		t.Fatalf("expected one job for the document, got %+v", jobs.created)
	}
	if len(queue.published) != 1 || queue.published[0].JobID != jobs.created[0].ID {
		t.Fatalf("expected published payload keyed by job id, got %+v", queue.published)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected stored object, got %d", len(storage.saved))
	}
	for key := range storage.saved {
		if !strings.HasSuffix(key, "_march_invoice.pdf") {
			t.Fatalf("expected sanitized storage key, got %q", key)
		}
	}
}

func TestUploadIntoRequestRecomputesAggregate(t *testing.T) {
	requestID := "req-1"
	docs := &docRepoFake{requestSet: []domain.Document{{Status: domain.DocStatusQueued}}}
	requests := &reqRepoFake{req: &domain.Request{ID: requestID, UserID: "u-1"}}
	uc := NewSubmitDocumentUseCase(docs, requests, &jobRepoFake{}, &storageFake{}, &queueFake{}, NewAuditRecorder(&auditFake{}))

	_, err := uc.Upload(context.Background(), ports.UploadInput{
		RequestID: &requestID,
		UserID:    "u-1",
		Filename:  "a.txt",
		MimeType:  "text/plain",
		Body:      strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if requests.aggregateCalls != 1 {
		t.Fatalf("expected aggregate recompute, got %d", requests.aggregateCalls)
	}
	if requests.aggregateStatus != domain.ReqStatusProcessing {
		t.Fatalf("queued document must drive the request to processing, got %s", requests.aggregateStatus)
	}
}

func TestUploadRejectsUnknownRequest(t *testing.T) {
	requestID := "missing"
	uc := NewSubmitDocumentUseCase(&docRepoFake{}, &reqRepoFake{}, &jobRepoFake{}, &storageFake{}, &queueFake{}, NewAuditRecorder(&auditFake{}))

	_, err := uc.Upload(context.Background(), ports.UploadInput{
		RequestID: &requestID,
		UserID:    "u-1",
		Filename:  "a.txt",
		Body:      strings.NewReader("x"),
	})
	if err == nil {
		t.Fatalf("expected error for unknown request")
	}
}

func TestUploadPropagatesDuplicateJobError(t *testing.T) {
	jobs := &jobRepoFake{createErr: domain.WrapError(domain.ErrInvalidInput, "create job", errors.New("active job exists"))}
	uc := NewSubmitDocumentUseCase(&docRepoFake{}, &reqRepoFake{}, jobs, &storageFake{}, &queueFake{}, NewAuditRecorder(&auditFake{}))

	_, err := uc.Upload(context.Background(), ports.UploadInput{
		UserID:   "u-1",
		Filename: "a.txt",
		Body:     strings.NewReader("x"),
	})
	if err == nil || !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestUploadCompensatesFailedPublish(t *testing.T) {
	docs := &docRepoFake{}
	jobs := &jobRepoFake{}
	queue := &queueFake{publishErr: errors.New("no responders available")}
	uc := NewSubmitDocumentUseCase(docs, &reqRepoFake{}, jobs, &storageFake{}, queue, NewAuditRecorder(&auditFake{}))

	_, err := uc.Upload(context.Background(), ports.UploadInput{
		UserID:   "u-1",
		Filename: "a.txt",
		Body:     strings.NewReader("x"),
	})
	if err == nil {
		t.Fatalf("expected publish error to surface")
	}

	if jobs.finishCalls != 1 || jobs.finishStatus != domain.JobStatusFailed {
		t.Fatalf("job must be finished failed after a failed publish, got calls=%d status=%s", jobs.finishCalls, jobs.finishStatus)
	}
	last := docs.statusCalls[len(docs.statusCalls)-1]
	if last.status != domain.DocStatusFailed {
		t.Fatalf("document must end failed, not %s; a queued document with no message cannot be retried", last.status)
	}
}

func TestCreateRequestRequiresUser(t *testing.T) {
	uc := NewSubmitDocumentUseCase(&docRepoFake{}, &reqRepoFake{}, &jobRepoFake{}, &storageFake{}, &queueFake{}, NewAuditRecorder(&auditFake{}))
	if _, err := uc.CreateRequest(context.Background(), " ", "march batch"); err == nil {
		t.Fatalf("expected error for blank user id")
	}

	req, err := uc.CreateRequest(context.Background(), "u-1", "march batch")
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if req.Status != domain.ReqStatusDraft {
		t.Fatalf("new request must start draft, got %s", req.Status)
	}
}
