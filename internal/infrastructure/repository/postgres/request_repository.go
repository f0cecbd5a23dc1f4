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

type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	countsJSON, err := json.Marshal(req.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	statsJSON, err := json.Marshal(req.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO requests (id, user_id, name, status, counts, stats, created_at, updated_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, req.ID, req.UserID, req.Name, string(req.Status), countsJSON, statsJSON, req.CreatedAt, req.UpdatedAt, req.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, name, status, counts, stats, created_at, updated_at, completed_at
FROM requests
WHERE id = $1
`, id)

	var (
		req       domain.Request
		status    string
		countsRaw []byte
		statsRaw  []byte
	)
	err := row.Scan(&req.ID, &req.UserID, &req.Name, &status, &countsRaw, &statsRaw, &req.CreatedAt, &req.UpdatedAt, &req.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get request %s: %w", id, domain.ErrRequestNotFound)
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}
	if err := json.Unmarshal(countsRaw, &req.Counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	if err := json.Unmarshal(statsRaw, &req.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	req.Status = domain.RequestStatus(status)
	return &req, nil
}

// UpdateAggregate stores the derived status, counts and statistics. The
// completion timestamp is set when the request first leaves the active
// statuses and cleared if it re-enters them.
func (r *RequestRepository) UpdateAggregate(ctx context.Context, id string, status domain.RequestStatus, counts domain.StatusCounts, stats domain.RequestStats) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	terminal := status == domain.ReqStatusCompleted || status == domain.ReqStatusPartial || status == domain.ReqStatusFailed
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
UPDATE requests
SET status = $2, counts = $3, stats = $4, updated_at = $5,
	completed_at = CASE
		WHEN $6 THEN COALESCE(completed_at, $5)
		ELSE NULL
	END
WHERE id = $1
`, id, string(status), countsJSON, statsJSON, now, terminal)
	if err != nil {
		return fmt.Errorf("update request aggregate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update request %s: %w", id, domain.ErrRequestNotFound)
	}
	return nil
}
