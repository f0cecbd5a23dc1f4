package usecase

import (
	"context"
	"fmt"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

// ActivateTemplateUseCase flips a vendor's active template. The repository
// deactivates siblings in the same transaction, so two concurrent activations
// cannot leave a vendor with two active templates.
type ActivateTemplateUseCase struct {
	templates ports.TemplateRepository
	audit     *AuditRecorder
}

func NewActivateTemplateUseCase(templates ports.TemplateRepository, audit *AuditRecorder) *ActivateTemplateUseCase {
	return &ActivateTemplateUseCase{templates: templates, audit: audit}
}

func (uc *ActivateTemplateUseCase) ActivateTemplate(ctx context.Context, templateID string) error {
	tpl, err := uc.templates.GetByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("fetch template by id: %w", err)
	}

	if err := uc.templates.Activate(ctx, tpl.ID); err != nil {
		return fmt.Errorf("activate template: %w", err)
	}

	uc.audit.Record(ctx, "", domain.AuditTemplateActivated, "template", tpl.ID, map[string]any{
		"vendor_id": tpl.VendorID,
	})
	return nil
}
