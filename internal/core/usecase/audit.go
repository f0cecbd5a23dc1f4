package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

// AuditRecorder decorates the audit sink with fire-and-forget semantics:
// sink failures are logged and swallowed, never propagated to the pipeline.
type AuditRecorder struct {
	sink ports.AuditSink
}

func NewAuditRecorder(sink ports.AuditSink) *AuditRecorder {
	return &AuditRecorder{sink: sink}
}

func (a *AuditRecorder) Record(ctx context.Context, userID, action, entityType, entityID string, detail map[string]any) {
	if a == nil || a.sink == nil {
		return
	}

	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.sink.Record(ctx, event); err != nil {
		slog.Warn("audit_record_failed", "action", action, "entity_id", entityID, "error", err)
	}
}
