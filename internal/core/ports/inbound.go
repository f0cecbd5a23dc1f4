package ports

import (
	"context"
	"io"

	"github.com/vgrishin/docextract/internal/core/domain"
)

// DocumentSubmitter is the inbound contract for uploads and job submission.
type DocumentSubmitter interface {
	CreateRequest(ctx context.Context, userID, name string) (*domain.Request, error)
	Upload(ctx context.Context, in UploadInput) (*domain.Document, error)
}

// UploadInput carries one uploaded file and its routing hints.
type UploadInput struct {
	RequestID *string
	UserID    string
	VendorID  *string
	Filename  string
	MimeType  string
	Body      io.Reader
}

// JobProcessor is the inbound contract for one queue delivery. final marks
// the last allowed attempt so exhaustion writes the terminal job result.
type JobProcessor interface {
	ProcessJob(ctx context.Context, payload domain.JobPayload, final bool) error
}

// DocumentRetrier resets a terminally failed document back to queued.
type DocumentRetrier interface {
	Retry(ctx context.Context, userID, documentID string) (*domain.Job, error)
}

// TemplateActivator flips the active template of a vendor.
type TemplateActivator interface {
	ActivateTemplate(ctx context.Context, templateID string) error
}
