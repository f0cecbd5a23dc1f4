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

// JobRepository is the durable job record. The partial unique index on
// unfinished jobs guarantees at most one open job per document; Finish only
// matches unfinished rows, so a terminal result is written exactly once.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
id, document_id, user_id, vendor_id_override, status, attempts, result, last_error, created_at, updated_at, finished_at`

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	resultJSON, err := marshalJobResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO jobs (`+jobColumns+`
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, job.ID, job.DocumentID, job.UserID, job.VendorIDOverride, string(job.Status), job.Attempts, resultJSON, job.LastError, job.CreatedAt, job.UpdatedAt, job.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get job %s: %w", id, domain.ErrJobNotFound)
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

func (r *JobRepository) GetActiveByDocument(ctx context.Context, documentID string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE document_id = $1 AND finished_at IS NULL
`, documentID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active job for document %s: %w", documentID, domain.ErrJobNotFound)
		}
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) MarkActive(ctx context.Context, id string, attempt int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, attempts = $3, updated_at = $4
WHERE id = $1 AND finished_at IS NULL
`, id, string(domain.JobStatusActive), attempt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark job active: %w", err)
	}
	return requireJobRow(result, id)
}

func (r *JobRepository) RecordAttemptError(ctx context.Context, id string, attempt int, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, attempts = $3, last_error = $4, updated_at = $5
WHERE id = $1 AND finished_at IS NULL
`, id, string(domain.JobStatusPending), attempt, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record job attempt error: %w", err)
	}
	return requireJobRow(result, id)
}

func (r *JobRepository) Finish(ctx context.Context, id string, status domain.JobStatus, jobResult domain.JobResult) error {
	resultJSON, err := marshalJobResult(&jobResult)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, result = $3, last_error = $4, updated_at = $5, finished_at = $5
WHERE id = $1 AND finished_at IS NULL
`, id, string(status), resultJSON, jobResult.Error, now)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return requireJobRow(result, id)
}

// DeleteCompletedBefore trims old completed jobs, always keeping the most
// recent keepLatest of them regardless of age.
func (r *JobRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time, keepLatest int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM jobs
WHERE status = $1 AND finished_at < $2
AND id NOT IN (
	SELECT id FROM jobs
	WHERE status = $1 AND finished_at IS NOT NULL
	ORDER BY finished_at DESC
	LIMIT $3
)
`, string(domain.JobStatusCompleted), cutoff.UTC(), keepLatest)
	if err != nil {
		return 0, fmt.Errorf("delete completed jobs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

func (r *JobRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM jobs
WHERE status = $1 AND finished_at < $2
`, string(domain.JobStatusFailed), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete failed jobs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

func requireJobRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update job %s: %w", id, domain.ErrJobNotFound)
	}
	return nil
}

func marshalJobResult(result *domain.JobResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return data, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		status    string
		resultRaw []byte
	)
	err := row.Scan(
		&job.ID, &job.DocumentID, &job.UserID, &job.VendorIDOverride,
		&status, &job.Attempts, &resultRaw, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(resultRaw) > 0 {
		var jobResult domain.JobResult
		if err := json.Unmarshal(resultRaw, &jobResult); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
		job.Result = &jobResult
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
