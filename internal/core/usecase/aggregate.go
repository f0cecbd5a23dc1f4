package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

// recomputeRequestAggregate derives the request status and statistics from a
// full read of the current document set and overwrites the request row.
// Last-writer-wins is safe because every writer recomputes from complete
// state. A nil requestID means the document is unbatched.
func recomputeRequestAggregate(
	ctx context.Context,
	docs ports.DocumentRepository,
	requests ports.RequestRepository,
	requestID *string,
) error {
	if requestID == nil {
		return nil
	}

	documents, err := docs.ListByRequest(ctx, *requestID)
	if err != nil {
		return fmt.Errorf("list request documents: %w", err)
	}

	counts := domain.CountStatuses(documents)
	status, fallback := domain.CalculateRequestStatus(counts)
	if fallback {
		slog.Warn("request_status_fallback",
			"request_id", *requestID,
			"counts", fmt.Sprintf("%+v", counts),
		)
	}
	stats := domain.CalculateRequestStats(documents)

	if err := requests.UpdateAggregate(ctx, *requestID, status, counts, stats); err != nil {
		return fmt.Errorf("update request aggregate: %w", err)
	}
	return nil
}
