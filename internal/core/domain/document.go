package domain

import "time"

type DocumentStatus string

const (
	DocStatusPending          DocumentStatus = "pending"
	DocStatusQueued           DocumentStatus = "queued"
	DocStatusProcessing       DocumentStatus = "processing"
	DocStatusProcessed        DocumentStatus = "processed"
	DocStatusValidationFailed DocumentStatus = "validation_failed"
	DocStatusFailed           DocumentStatus = "failed"
)

// IsTerminal reports whether no further queue-driven transition applies.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocStatusProcessed, DocStatusValidationFailed, DocStatusFailed:
		return true
	default:
		return false
	}
}

// IsFailure reports whether the status belongs to the failure class.
func (s DocumentStatus) IsFailure() bool {
	return s == DocStatusFailed || s == DocStatusValidationFailed
}

type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}

type Document struct {
	ID          string  `json:"id"`
	RequestID   *string `json:"request_id,omitempty"`
	UserID      string  `json:"user_id"`
	VendorID    *string `json:"vendor_id,omitempty"`
	Filename    string  `json:"filename"`
	MimeType    string  `json:"mime_type"`
	StoragePath string  `json:"storage_path"`

	Status DocumentStatus `json:"status"`
	Error  string         `json:"error,omitempty"`

	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	InvoiceDate   *string    `json:"invoice_date,omitempty"`
	TotalAmount   *float64   `json:"total_amount,omitempty"`
	Currency      *string    `json:"currency,omitempty"`
	LineItems     []LineItem `json:"line_items,omitempty"`

	RawText          string   `json:"-"`
	RawResponse      string   `json:"-"`
	ValidationErrors []string `json:"validation_errors,omitempty"`

	RetryCount  int        `json:"retry_count"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ExtractedRecord is the structured result of one provider call after it has
// been validated against the dynamic schema.
type ExtractedRecord struct {
	InvoiceNumber *string        `json:"invoice_number"`
	InvoiceDate   *string        `json:"invoice_date"`
	TotalAmount   *float64       `json:"total_amount"`
	Currency      *string        `json:"currency"`
	LineItems     []LineItem     `json:"line_items"`
	CustomFields  map[string]any `json:"custom_fields,omitempty"`
}

// IsMeaningfullyEmpty reports whether parsing succeeded but the provider found
// none of the baseline fields. Callers treat this as a soft failure.
func (r ExtractedRecord) IsMeaningfullyEmpty() bool {
	return r.InvoiceNumber == nil &&
		r.InvoiceDate == nil &&
		r.TotalAmount == nil &&
		len(r.LineItems) == 0
}
