package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vgrishin/docextract/internal/core/domain"
)

const validResponse = `{
	"invoice_number": "INV-1",
	"invoice_date": "2026-03-01",
	"total_amount": 100,
	"currency": "USD",
	"line_items": [{"description": "widget", "quantity": 1, "unit_price": 100, "amount": 100}]
}`

func requestIDPtr(v string) *string { return &v }

func newProcessFixture(docs *docRepoFake, requests *reqRepoFake, templates *templateRepoFake, jobs *jobRepoFake, extractor *extractorFake, provider *providerFake) *ProcessJobUseCase {
	return NewProcessJobUseCase(docs, requests, templates, jobs, extractor, provider, NewAuditRecorder(&auditFake{}))
}

func TestProcessJobSuccess(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1"}}
	jobs := &jobRepoFake{}
	uc := newProcessFixture(docs, &reqRepoFake{}, &templateRepoFake{}, jobs,
		&extractorFake{text: "Invoice INV-1 total 100 USD"},
		&providerFake{response: validResponse},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	if err := uc.ProcessJob(context.Background(), payload, false); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}

	last := docs.statusCalls[len(docs.statusCalls)-1]
	if last.status != domain.DocStatusProcessed {
		t.Fatalf("expected terminal processed, got %+v", docs.statusCalls)
	}
	if docs.savedRecord == nil || *docs.savedRecord.TotalAmount != 100 {
		t.Fatalf("expected saved extraction with amount 100, got %+v", docs.savedRecord)
	}
	if jobs.finishStatus != domain.JobStatusCompleted || jobs.finishResult == nil || !jobs.finishResult.Success {
		t.Fatalf("expected completed successful job result, got %s %+v", jobs.finishStatus, jobs.finishResult)
	}
}

func TestProcessJobValidationFailureIsTerminal(t *testing.T) {
	vendorID := "vendor-1"
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1", VendorID: &vendorID}}
	jobs := &jobRepoFake{}
	templates := &templateRepoFake{tpl: &domain.VendorTemplate{
		ID:       "tpl-1",
		VendorID: vendorID,
		Rules: []domain.ValidationRule{
			{Field: "total_amount", Kind: domain.RuleMin, Value: 500.0, Message: "total below contract minimum"},
		},
	}}
	uc := newProcessFixture(docs, &reqRepoFake{}, templates, jobs,
		&extractorFake{text: "Invoice INV-1"},
		&providerFake{response: validResponse},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	if err := uc.ProcessJob(context.Background(), payload, false); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}

	last := docs.statusCalls[len(docs.statusCalls)-1]
	if last.status != domain.DocStatusValidationFailed {
		t.Fatalf("expected validation_failed, got %+v", docs.statusCalls)
	}
	if len(docs.savedFailure) != 1 || !strings.Contains(docs.savedFailure[0], "total below contract minimum") {
		t.Fatalf("expected violation message, got %v", docs.savedFailure)
	}
	if jobs.finishResult == nil || jobs.finishResult.Success {
		t.Fatalf("expected unsuccessful job result, got %+v", jobs.finishResult)
	}
	if jobs.finishResult.ExtractedData == nil {
		t.Fatalf("validation failure must still carry the extracted data")
	}
}

func TestProcessJobNonFinalFailureLeavesJobOpen(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1"}}
	jobs := &jobRepoFake{}
	uc := newProcessFixture(docs, &reqRepoFake{}, &templateRepoFake{}, jobs,
		&extractorFake{err: errors.New("storage unreachable")},
		&providerFake{response: validResponse},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	err := uc.ProcessJob(context.Background(), payload, false)
	if err == nil {
		t.Fatalf("expected pipeline error")
	}
	if jobs.finishCalls != 0 {
		t.Fatalf("non-final failure must not write the terminal job result")
	}
	if len(jobs.attemptErrors) != 1 {
		t.Fatalf("expected recorded attempt error, got %v", jobs.attemptErrors)
	}
	last := docs.statusCalls[len(docs.statusCalls)-1]
	if last.status != domain.DocStatusFailed {
		t.Fatalf("expected failed status, got %+v", docs.statusCalls)
	}
}

func TestProcessJobFinalFailureWritesTerminalResult(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1"}}
	jobs := &jobRepoFake{}
	uc := newProcessFixture(docs, &reqRepoFake{}, &templateRepoFake{}, jobs,
		&extractorFake{err: errors.New("storage unreachable")},
		&providerFake{},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 3}
	if err := uc.ProcessJob(context.Background(), payload, true); err == nil {
		t.Fatalf("expected pipeline error")
	}
	if jobs.finishStatus != domain.JobStatusFailed || jobs.finishResult == nil || jobs.finishResult.Success {
		t.Fatalf("expected terminal failed job result, got %s %+v", jobs.finishStatus, jobs.finishResult)
	}
}

func TestProcessJobFatalConfigWritesTerminalResultEarly(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1"}}
	jobs := &jobRepoFake{}
	uc := newProcessFixture(docs, &reqRepoFake{}, &templateRepoFake{}, jobs,
		&extractorFake{text: "Invoice"},
		&providerFake{err: domain.WrapError(domain.ErrFatalConfig, "provider", errors.New("missing credentials"))},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	err := uc.ProcessJob(context.Background(), payload, false)
	if err == nil || !domain.IsKind(err, domain.ErrFatalConfig) {
		t.Fatalf("expected fatal config error, got %v", err)
	}
	if jobs.finishStatus != domain.JobStatusFailed {
		t.Fatalf("fatal config must terminate the job on the first attempt")
	}
}

func TestProcessJobMeaninglessExtractionFails(t *testing.T) {
	docs := &docRepoFake{doc: &domain.Document{ID: "doc-1", UserID: "u-1"}}
	jobs := &jobRepoFake{}
	uc := newProcessFixture(docs, &reqRepoFake{}, &templateRepoFake{}, jobs,
		&extractorFake{text: "unreadable scan"},
		&providerFake{response: `{"invoice_number": null, "total_amount": null, "line_items": []}`},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	err := uc.ProcessJob(context.Background(), payload, false)
	if err == nil || !domain.IsKind(err, domain.ErrEmptyExtraction) {
		t.Fatalf("expected empty extraction error, got %v", err)
	}
}

func TestProcessJobRecomputesRequestAggregate(t *testing.T) {
	requestID := "req-1"
	docs := &docRepoFake{
		doc: &domain.Document{ID: "doc-1", UserID: "u-1", RequestID: requestIDPtr(requestID)},
		requestSet: []domain.Document{
			{Status: domain.DocStatusProcessed, TotalAmount: floatPtrTest(100), Currency: strPtrTest("USD")},
			{Status: domain.DocStatusFailed},
		},
	}
	requests := &reqRepoFake{}
	uc := newProcessFixture(docs, requests, &templateRepoFake{}, &jobRepoFake{},
		&extractorFake{text: "Invoice"},
		&providerFake{response: validResponse},
	)

	payload := domain.JobPayload{JobID: "job-1", DocumentID: "doc-1", UserID: "u-1", Attempt: 1}
	if err := uc.ProcessJob(context.Background(), payload, false); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if requests.aggregateCalls != 1 {
		t.Fatalf("expected one aggregate recompute, got %d", requests.aggregateCalls)
	}
	if requests.aggregateStatus != domain.ReqStatusPartial {
		t.Fatalf("expected partial request status, got %s", requests.aggregateStatus)
	}
	if requests.aggregateStats.TotalAmount == nil || *requests.aggregateStats.TotalAmount != 100 {
		t.Fatalf("expected aggregate total 100, got %v", requests.aggregateStats.TotalAmount)
	}
	if requests.aggregateStats.Currency == nil || *requests.aggregateStats.Currency != "USD" {
		t.Fatalf("expected aggregate currency USD, got %v", requests.aggregateStats.Currency)
	}
}

func floatPtrTest(v float64) *float64 { return &v }
func strPtrTest(v string) *string     { return &v }
