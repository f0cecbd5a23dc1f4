package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vgrishin/docextract/internal/core/domain"
)

// AuditRepository appends pipeline events to the audit trail.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	detail := event.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, user_id, action, entity_type, entity_id, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, event.ID, event.UserID, event.Action, event.EntityType, event.EntityID, detailJSON, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
