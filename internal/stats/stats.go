// Package stats counts submission outcomes. Counters are best effort: a
// failing store is logged by the caller and never fails a submission.
//
// Keep the key space small: counters are split only by outcome and by minute,
// never by document or credential.
package stats

import (
	"context"

	"submitter/internal/models"
)

// Store persists outcome counters.
type Store interface {
	Record(ctx context.Context, record *models.SubmissionRecord) error
	// Totals returns the all-time counters.
	Totals(ctx context.Context) (Counters, error)
}

// Counters holds per-outcome totals.
type Counters map[string]int64
