package usecase

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

type docStatusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	doc        *domain.Document
	requestSet []domain.Document
	getErr     error
	createErr  error

	created        *domain.Document
	statusCalls    []docStatusCall
	processingAt   *time.Time
	savedRecord    *domain.ExtractedRecord
	savedRaw       string
	savedFailure   []string
	failedMessages []string
	retryResets    int
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	snapshot := *doc
	f.created = &snapshot
	return nil
}

func (f *docRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *docRepoFake) ListByRequest(context.Context, string) ([]domain.Document, error) {
	return f.requestSet, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, docStatusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *docRepoFake) MarkProcessing(_ context.Context, _ string, startedAt time.Time) error {
	f.processingAt = &startedAt
	f.statusCalls = append(f.statusCalls, docStatusCall{status: domain.DocStatusProcessing})
	return nil
}

func (f *docRepoFake) SaveExtraction(_ context.Context, _ string, record domain.ExtractedRecord, _, raw string) error {
	f.savedRecord = &record
	f.savedRaw = raw
	f.statusCalls = append(f.statusCalls, docStatusCall{status: domain.DocStatusProcessed})
	return nil
}

func (f *docRepoFake) SaveValidationFailure(_ context.Context, _ string, record domain.ExtractedRecord, _, _ string, violations []string) error {
	f.savedRecord = &record
	f.savedFailure = violations
	f.statusCalls = append(f.statusCalls, docStatusCall{status: domain.DocStatusValidationFailed})
	return nil
}

func (f *docRepoFake) MarkFailed(_ context.Context, _ string, errMessage string) error {
	f.failedMessages = append(f.failedMessages, errMessage)
	f.statusCalls = append(f.statusCalls, docStatusCall{status: domain.DocStatusFailed, errMsg: errMessage})
	return nil
}

func (f *docRepoFake) ResetForRetry(context.Context, string) error {
	f.retryResets++
	f.statusCalls = append(f.statusCalls, docStatusCall{status: domain.DocStatusQueued})
	return nil
}

type reqRepoFake struct {
	req *domain.Request

	aggregateStatus domain.RequestStatus
	aggregateCounts domain.StatusCounts
	aggregateStats  domain.RequestStats
	aggregateCalls  int
}

func (f *reqRepoFake) Create(_ context.Context, req *domain.Request) error {
	f.req = req
	return nil
}

func (f *reqRepoFake) GetByID(context.Context, string) (*domain.Request, error) {
	if f.req == nil {
		return nil, domain.ErrRequestNotFound
	}
	return f.req, nil
}

func (f *reqRepoFake) UpdateAggregate(_ context.Context, _ string, status domain.RequestStatus, counts domain.StatusCounts, stats domain.RequestStats) error {
	f.aggregateStatus = status
	f.aggregateCounts = counts
	f.aggregateStats = stats
	f.aggregateCalls++
	return nil
}

type templateRepoFake struct {
	tpl       *domain.VendorTemplate
	activated string
}

func (f *templateRepoFake) Create(context.Context, *domain.VendorTemplate) error { return nil }

func (f *templateRepoFake) GetByID(context.Context, string) (*domain.VendorTemplate, error) {
	if f.tpl == nil {
		return nil, domain.ErrTemplateNotFound
	}
	return f.tpl, nil
}

func (f *templateRepoFake) GetActiveByVendor(context.Context, string) (*domain.VendorTemplate, error) {
	if f.tpl == nil {
		return nil, domain.ErrTemplateNotFound
	}
	return f.tpl, nil
}

func (f *templateRepoFake) Activate(_ context.Context, id string) error {
	f.activated = id
	return nil
}

type jobRepoFake struct {
	createErr error

	created       []*domain.Job
	activeAttempt int
	attemptErrors []string
	finishStatus  domain.JobStatus
	finishResult  *domain.JobResult
	finishCalls   int
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, job)
	return nil
}

func (f *jobRepoFake) GetByID(context.Context, string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (f *jobRepoFake) GetActiveByDocument(context.Context, string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (f *jobRepoFake) MarkActive(_ context.Context, _ string, attempt int) error {
	f.activeAttempt = attempt
	return nil
}

func (f *jobRepoFake) RecordAttemptError(_ context.Context, _ string, _ int, errMessage string) error {
	f.attemptErrors = append(f.attemptErrors, errMessage)
	return nil
}

func (f *jobRepoFake) Finish(_ context.Context, _ string, status domain.JobStatus, result domain.JobResult) error {
	f.finishStatus = status
	f.finishResult = &result
	f.finishCalls++
	return nil
}

func (f *jobRepoFake) DeleteCompletedBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

func (f *jobRepoFake) DeleteFailedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type storageFake struct {
	saved map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.saved[key])), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.saved, key)
	return nil
}

type queueFake struct {
	publishErr error
	published  []domain.JobPayload
}

func (f *queueFake) Publish(_ context.Context, payload domain.JobPayload) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *queueFake) Consume(context.Context, func(context.Context, domain.JobPayload, int) ports.JobDisposition) error {
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type providerFake struct {
	response string
	err      error
}

func (f *providerFake) ExtractStructured(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type auditFake struct {
	events []domain.AuditEvent
	err    error
}

func (f *auditFake) Record(_ context.Context, event domain.AuditEvent) error {
	f.events = append(f.events, event)
	if f.err != nil {
		return f.err
	}
	return nil
}
