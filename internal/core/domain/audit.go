package domain

import "time"

// AuditEvent is a fire-and-forget record of a pipeline action. Sink failures
// are logged and swallowed, never propagated.
type AuditEvent struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

const (
	AuditDocumentUploaded         = "document.uploaded"
	AuditDocumentProcessed        = "document.processed"
	AuditDocumentValidationFailed = "document.validation_failed"
	AuditDocumentFailed           = "document.failed"
	AuditDocumentRetried          = "document.retried"
	AuditTemplateActivated        = "template.activated"
)
