package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
	"github.com/vgrishin/docextract/internal/core/rules"
	"github.com/vgrishin/docextract/internal/core/schema"
)

// ProcessJobUseCase runs one extraction attempt end to end. Only this usecase
// writes terminal document statuses; lower components return typed outcomes.
type ProcessJobUseCase struct {
	docs      ports.DocumentRepository
	requests  ports.RequestRepository
	templates ports.TemplateRepository
	jobs      ports.JobRepository
	extractor ports.TextExtractor
	provider  ports.ExtractionProvider
	audit     *AuditRecorder
}

func NewProcessJobUseCase(
	docs ports.DocumentRepository,
	requests ports.RequestRepository,
	templates ports.TemplateRepository,
	jobs ports.JobRepository,
	extractor ports.TextExtractor,
	provider ports.ExtractionProvider,
	audit *AuditRecorder,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		docs:      docs,
		requests:  requests,
		templates: templates,
		jobs:      jobs,
		extractor: extractor,
		provider:  provider,
		audit:     audit,
	}
}

type pipelineOutput struct {
	doc         *domain.Document
	record      domain.ExtractedRecord
	rawText     string
	rawResponse string
	violations  []rules.Violation
}

func (uc *ProcessJobUseCase) ProcessJob(ctx context.Context, payload domain.JobPayload, final bool) error {
	if err := uc.jobs.MarkActive(ctx, payload.JobID, payload.Attempt); err != nil {
		return fmt.Errorf("mark job active: %w", err)
	}

	out, err := uc.runPipeline(ctx, payload)
	if err != nil {
		return uc.handleFailure(ctx, payload, final, err)
	}

	if len(out.violations) > 0 {
		return uc.handleValidationFailure(ctx, payload, out)
	}
	return uc.handleSuccess(ctx, payload, out)
}

func (uc *ProcessJobUseCase) runPipeline(ctx context.Context, payload domain.JobPayload) (*pipelineOutput, error) {
	doc, err := uc.docs.GetByID(ctx, payload.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.docs.MarkProcessing(ctx, doc.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	tpl, err := uc.resolveTemplate(ctx, doc, payload.VendorIDOverride)
	if err != nil {
		return nil, err
	}

	sch, err := schema.Build(tpl)
	if err != nil {
		return nil, fmt.Errorf("build extraction schema: %w", err)
	}

	prompt := buildExtractionPrompt(text, sch.Instructions, promptFragment(tpl))
	raw, err := uc.provider.ExtractStructured(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("provider extraction: %w", err)
	}

	record, err := sch.Validate([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if record.IsMeaningfullyEmpty() {
		return nil, domain.WrapError(domain.ErrEmptyExtraction, "inspect extraction",
			errors.New("no invoice number, date, amount or line items found"))
	}

	return &pipelineOutput{
		doc:         doc,
		record:      record,
		rawText:     text,
		rawResponse: raw,
		violations:  rules.Evaluate(record, templateRules(tpl)),
	}, nil
}

func (uc *ProcessJobUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// resolveTemplate picks the template for the attempt: the payload override
// wins over the document's vendor; a vendor without an active template is not
// an error, the baseline schema applies.
func (uc *ProcessJobUseCase) resolveTemplate(ctx context.Context, doc *domain.Document, override *string) (*domain.VendorTemplate, error) {
	vendorID := doc.VendorID
	if override != nil {
		vendorID = override
	}
	if vendorID == nil || *vendorID == "" {
		return nil, nil
	}

	tpl, err := uc.templates.GetActiveByVendor(ctx, *vendorID)
	if err != nil {
		if domain.IsKind(err, domain.ErrTemplateNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load active template: %w", err)
	}
	return tpl, nil
}

func (uc *ProcessJobUseCase) handleSuccess(ctx context.Context, payload domain.JobPayload, out *pipelineOutput) error {
	if err := uc.docs.SaveExtraction(ctx, out.doc.ID, out.record, out.rawText, out.rawResponse); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}

	record := out.record
	if err := uc.jobs.Finish(ctx, payload.JobID, domain.JobStatusCompleted, domain.JobResult{
		Success:       true,
		DocumentID:    out.doc.ID,
		ExtractedData: &record,
	}); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	uc.audit.Record(ctx, payload.UserID, domain.AuditDocumentProcessed, "document", out.doc.ID, map[string]any{
		"attempt": payload.Attempt,
	})
	return recomputeRequestAggregate(ctx, uc.docs, uc.requests, out.doc.RequestID)
}

func (uc *ProcessJobUseCase) handleValidationFailure(ctx context.Context, payload domain.JobPayload, out *pipelineOutput) error {
	messages := rules.Messages(out.violations)
	if err := uc.docs.SaveValidationFailure(ctx, out.doc.ID, out.record, out.rawText, out.rawResponse, messages); err != nil {
		return fmt.Errorf("save validation failure: %w", err)
	}

	record := out.record
	if err := uc.jobs.Finish(ctx, payload.JobID, domain.JobStatusCompleted, domain.JobResult{
		Success:       false,
		DocumentID:    out.doc.ID,
		ExtractedData: &record,
		Error:         fmt.Sprintf("validation failed: %d violation(s)", len(messages)),
	}); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	uc.audit.Record(ctx, payload.UserID, domain.AuditDocumentValidationFailed, "document", out.doc.ID, map[string]any{
		"violations": messages,
	})
	return recomputeRequestAggregate(ctx, uc.docs, uc.requests, out.doc.RequestID)
}

// handleFailure writes the failed document state and, on the final attempt or
// a fatal condition, the terminal job result. The pipeline error is returned
// so the queue adapter can decide the delivery disposition.
func (uc *ProcessJobUseCase) handleFailure(ctx context.Context, payload domain.JobPayload, final bool, pipelineErr error) error {
	if failErr := uc.docs.MarkFailed(ctx, payload.DocumentID, pipelineErr.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", pipelineErr, failErr)
	}
	if recErr := uc.jobs.RecordAttemptError(ctx, payload.JobID, payload.Attempt, pipelineErr.Error()); recErr != nil {
		return fmt.Errorf("%w; record attempt error: %v", pipelineErr, recErr)
	}

	if final || domain.IsKind(pipelineErr, domain.ErrFatalConfig) {
		if finErr := uc.jobs.Finish(ctx, payload.JobID, domain.JobStatusFailed, domain.JobResult{
			Success:    false,
			DocumentID: payload.DocumentID,
			Error:      pipelineErr.Error(),
		}); finErr != nil {
			return fmt.Errorf("%w; finish job: %v", pipelineErr, finErr)
		}
	}

	uc.audit.Record(ctx, payload.UserID, domain.AuditDocumentFailed, "document", payload.DocumentID, map[string]any{
		"attempt": payload.Attempt,
		"final":   final,
		"error":   pipelineErr.Error(),
	})

	doc, err := uc.docs.GetByID(ctx, payload.DocumentID)
	if err == nil {
		if aggErr := recomputeRequestAggregate(ctx, uc.docs, uc.requests, doc.RequestID); aggErr != nil {
			return fmt.Errorf("%w; recompute aggregate: %v", pipelineErr, aggErr)
		}
	}

	return pipelineErr
}

func promptFragment(tpl *domain.VendorTemplate) string {
	if tpl == nil {
		return ""
	}
	return tpl.PromptFragment
}

func templateRules(tpl *domain.VendorTemplate) []domain.ValidationRule {
	if tpl == nil {
		return nil
	}
	return tpl.Rules
}
