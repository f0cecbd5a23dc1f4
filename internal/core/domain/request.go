package domain

import "time"

type RequestStatus string

const (
	ReqStatusDraft      RequestStatus = "draft"
	ReqStatusProcessing RequestStatus = "processing"
	ReqStatusCompleted  RequestStatus = "completed"
	ReqStatusPartial    RequestStatus = "partial"
	ReqStatusFailed     RequestStatus = "failed"
)

// StatusCounts partitions a request's documents by their current status.
type StatusCounts struct {
	Pending          int `json:"pending"`
	Queued           int `json:"queued"`
	Processing       int `json:"processing"`
	Processed        int `json:"processed"`
	ValidationFailed int `json:"validation_failed"`
	Failed           int `json:"failed"`
}

func (c StatusCounts) Total() int {
	return c.Pending + c.Queued + c.Processing + c.Processed + c.ValidationFailed + c.Failed
}

func (c StatusCounts) failureClass() int {
	return c.Failed + c.ValidationFailed
}

// CountStatuses builds the partition for a document set.
func CountStatuses(docs []Document) StatusCounts {
	var counts StatusCounts
	for _, doc := range docs {
		switch doc.Status {
		case DocStatusPending:
			counts.Pending++
		case DocStatusQueued:
			counts.Queued++
		case DocStatusProcessing:
			counts.Processing++
		case DocStatusProcessed:
			counts.Processed++
		case DocStatusValidationFailed:
			counts.ValidationFailed++
		case DocStatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// CalculateRequestStatus derives the aggregate status from the partition.
// Rules are priority-ordered; the second return value reports that no explicit
// rule matched and the defensive draft default was used, so callers can log it.
func CalculateRequestStatus(counts StatusCounts) (RequestStatus, bool) {
	total := counts.Total()

	switch {
	case total == 0:
		return ReqStatusDraft, false
	case counts.Queued > 0 || counts.Processing > 0:
		return ReqStatusProcessing, false
	case counts.Pending == total:
		return ReqStatusDraft, false
	case counts.Processed == 0 && counts.failureClass() > 0 && counts.Pending == 0:
		return ReqStatusFailed, false
	case counts.Processed == total:
		return ReqStatusCompleted, false
	case counts.Processed > 0 && counts.failureClass() > 0 && counts.Pending == 0:
		return ReqStatusPartial, false
	}

	// Uncovered combination, e.g. pending mixed with terminal statuses.
	return ReqStatusDraft, true
}

type Request struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	Status RequestStatus `json:"status"`
	Counts StatusCounts  `json:"counts"`
	Stats  RequestStats  `json:"stats"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
