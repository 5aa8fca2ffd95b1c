package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome labels for SubmissionRecord.Outcome.
const (
	OutcomeOK                 = "ok"
	OutcomeInterrupted        = "interrupted"
	OutcomeSerializationError = "serialization_error"
	OutcomeTransportError     = "transport_error"
)

// SubmissionRecord is the journal entry written for every submission attempt.
type SubmissionRecord struct {
	ID         string        `json:"id"`
	DocID      string        `json:"doc_id,omitempty"`
	Outcome    string        `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// NewSubmissionRecord creates a record with a fresh ID for a submission that
// started at startedAt.
func NewSubmissionRecord(docID string, startedAt time.Time) *SubmissionRecord {
	return &SubmissionRecord{
		ID:        uuid.New().String(),
		DocID:     docID,
		StartedAt: startedAt,
	}
}

// Finish stamps the outcome of the submission.
func (r *SubmissionRecord) Finish(outcome string, statusCode int, err error, finishedAt time.Time) {
	r.Outcome = outcome
	r.StatusCode = statusCode
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = finishedAt
	r.Duration = finishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the submission reached the endpoint.
func (r *SubmissionRecord) Succeeded() bool {
	return r.Outcome == OutcomeOK
}
