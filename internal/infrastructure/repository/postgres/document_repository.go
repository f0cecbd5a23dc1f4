package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
id, request_id, user_id, vendor_id, filename, mime_type, storage_path,
status, error_message, invoice_number, invoice_date, total_amount, currency,
line_items, raw_text, raw_response, validation_errors, retry_count,
started_at, completed_at, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	lineItemsJSON, err := json.Marshal(orEmptyLineItems(doc.LineItems))
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	violationsJSON, err := json.Marshal(orEmptyStrings(doc.ValidationErrors))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
`,
		doc.ID, doc.RequestID, doc.UserID, doc.VendorID, doc.Filename, doc.MimeType, doc.StoragePath,
		string(doc.Status), doc.Error, doc.InvoiceNumber, doc.InvoiceDate, doc.TotalAmount, doc.Currency,
		lineItemsJSON, doc.RawText, doc.RawResponse, violationsJSON, doc.RetryCount,
		doc.StartedAt, doc.CompletedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get document %s: %w", id, domain.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE request_id = $1
ORDER BY created_at ASC
`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireDocumentRow(result, id)
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = '', started_at = $3, completed_at = NULL, updated_at = $3
WHERE id = $1
`, id, string(domain.DocStatusProcessing), startedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}
	return requireDocumentRow(result, id)
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, record domain.ExtractedRecord, rawText, rawResponse string) error {
	return r.saveOutcome(ctx, id, domain.DocStatusProcessed, record, rawText, rawResponse, nil)
}

func (r *DocumentRepository) SaveValidationFailure(ctx context.Context, id string, record domain.ExtractedRecord, rawText, rawResponse string, violations []string) error {
	return r.saveOutcome(ctx, id, domain.DocStatusValidationFailed, record, rawText, rawResponse, violations)
}

func (r *DocumentRepository) saveOutcome(
	ctx context.Context,
	id string,
	status domain.DocumentStatus,
	record domain.ExtractedRecord,
	rawText, rawResponse string,
	violations []string,
) error {
	lineItemsJSON, err := json.Marshal(orEmptyLineItems(record.LineItems))
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	violationsJSON, err := json.Marshal(orEmptyStrings(violations))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = '',
	invoice_number = $3, invoice_date = $4, total_amount = $5, currency = $6,
	line_items = $7, raw_text = $8, raw_response = $9, validation_errors = $10,
	completed_at = $11, updated_at = $11
WHERE id = $1
`,
		id, string(status),
		record.InvoiceNumber, record.InvoiceDate, record.TotalAmount, record.Currency,
		lineItemsJSON, rawText, rawResponse, violationsJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("save extraction outcome: %w", err)
	}
	return requireDocumentRow(result, id)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, completed_at = $4, updated_at = $4
WHERE id = $1
`, id, string(domain.DocStatusFailed), errMessage, now)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return requireDocumentRow(result, id)
}

// ResetForRetry requeues a terminally failed document: the failure diagnostics
// stay untouched until the next attempt overwrites them.
func (r *DocumentRepository) ResetForRetry(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, retry_count = retry_count + 1, updated_at = $3
WHERE id = $1
`, id, string(domain.DocStatusQueued), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset document for retry: %w", err)
	}
	return requireDocumentRow(result, id)
}

func requireDocumentRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc           domain.Document
		status        string
		lineItemsRaw  []byte
		violationsRaw []byte
	)
	err := row.Scan(
		&doc.ID, &doc.RequestID, &doc.UserID, &doc.VendorID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&status, &doc.Error, &doc.InvoiceNumber, &doc.InvoiceDate, &doc.TotalAmount, &doc.Currency,
		&lineItemsRaw, &doc.RawText, &doc.RawResponse, &violationsRaw, &doc.RetryCount,
		&doc.StartedAt, &doc.CompletedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lineItemsRaw, &doc.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	if err := json.Unmarshal(violationsRaw, &doc.ValidationErrors); err != nil {
		return nil, fmt.Errorf("unmarshal validation errors: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func orEmptyLineItems(items []domain.LineItem) []domain.LineItem {
	if items == nil {
		return []domain.LineItem{}
	}
	return items
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
