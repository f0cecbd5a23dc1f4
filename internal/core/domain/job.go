package domain

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobPayload is what travels through the queue.
type JobPayload struct {
	JobID            string  `json:"job_id"`
	DocumentID       string  `json:"document_id"`
	UserID           string  `json:"user_id"`
	VendorIDOverride *string `json:"vendor_id_override,omitempty"`
	Attempt          int     `json:"attempt"`
}

// JobResult is the terminal outcome of a job, written exactly once.
type JobResult struct {
	Success       bool             `json:"success"`
	DocumentID    string           `json:"document_id"`
	ExtractedData *ExtractedRecord `json:"extracted_data,omitempty"`
	Error         string           `json:"error,omitempty"`
}

type Job struct {
	ID               string     `json:"id"`
	DocumentID       string     `json:"document_id"`
	UserID           string     `json:"user_id"`
	VendorIDOverride *string    `json:"vendor_id_override,omitempty"`
	Status           JobStatus  `json:"status"`
	Attempts         int        `json:"attempts"`
	Result           *JobResult `json:"result,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}
