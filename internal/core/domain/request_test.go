package domain

import "testing"

func TestCalculateRequestStatusEmptySetIsDraft(t *testing.T) {
	status, fallback := CalculateRequestStatus(StatusCounts{})
	if status != ReqStatusDraft {
		t.Fatalf("expected draft for empty set, got %s", status)
	}
	if fallback {
		t.Fatalf("empty set must not be the fallback branch")
	}
}

func TestCalculateRequestStatusActiveWorkWins(t *testing.T) {
	cases := []StatusCounts{
		{Queued: 1},
		{Processing: 1},
		{Queued: 1, Processed: 5, Failed: 2},
		{Processing: 1, Pending: 3, ValidationFailed: 1},
	}
	for _, counts := range cases {
		status, _ := CalculateRequestStatus(counts)
		if status != ReqStatusProcessing {
			t.Fatalf("counts %+v: expected processing, got %s", counts, status)
		}
	}
}

func TestCalculateRequestStatusOnlyPendingIsDraft(t *testing.T) {
	status, fallback := CalculateRequestStatus(StatusCounts{Pending: 3})
	if status != ReqStatusDraft || fallback {
		t.Fatalf("expected explicit draft, got %s fallback=%v", status, fallback)
	}
}

func TestCalculateRequestStatusOnlyFailuresIsFailed(t *testing.T) {
	cases := []StatusCounts{
		{Failed: 2},
		{ValidationFailed: 1},
		{Failed: 1, ValidationFailed: 1},
	}
	for _, counts := range cases {
		status, _ := CalculateRequestStatus(counts)
		if status != ReqStatusFailed {
			t.Fatalf("counts %+v: expected failed, got %s", counts, status)
		}
	}
}

func TestCalculateRequestStatusOnlyProcessedIsCompleted(t *testing.T) {
	status, _ := CalculateRequestStatus(StatusCounts{Processed: 4})
	if status != ReqStatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
}

func TestCalculateRequestStatusMixedOutcomeIsPartial(t *testing.T) {
	cases := []StatusCounts{
		{Processed: 3, Failed: 1},
		{Processed: 1, ValidationFailed: 2},
	}
	for _, counts := range cases {
		status, _ := CalculateRequestStatus(counts)
		if status != ReqStatusPartial {
			t.Fatalf("counts %+v: expected partial, got %s", counts, status)
		}
	}
}

func TestCalculateRequestStatusUncoveredCombinationFallsBack(t *testing.T) {
	// pending mixed with terminal statuses hits no explicit rule
	status, fallback := CalculateRequestStatus(StatusCounts{Pending: 1, ValidationFailed: 1})
	if status != ReqStatusDraft {
		t.Fatalf("expected defensive draft, got %s", status)
	}
	if !fallback {
		t.Fatalf("expected fallback flag for uncovered combination")
	}
}

func TestCountStatusesPartitionsDocuments(t *testing.T) {
	docs := []Document{
		{Status: DocStatusPending},
		{Status: DocStatusProcessed},
		{Status: DocStatusProcessed},
		{Status: DocStatusFailed},
		{Status: DocStatusValidationFailed},
	}
	counts := CountStatuses(docs)
	if counts.Total() != len(docs) {
		t.Fatalf("partition total %d != document count %d", counts.Total(), len(docs))
	}
	if counts.Processed != 2 || counts.Failed != 1 || counts.ValidationFailed != 1 || counts.Pending != 1 {
		t.Fatalf("unexpected partition: %+v", counts)
	}
}
