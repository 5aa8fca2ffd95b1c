// Package journal keeps a record of every submission attempt. It is an audit
// trail of outcomes, not rate-limit state: the permit pool never reads it.
package journal

import (
	"context"
	"errors"
	"time"

	"submitter/internal/models"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// Journal defines persistence for submission records. Implementations must be
// safe for concurrent use.
type Journal interface {
	// Record appends a finished submission
	Record(ctx context.Context, record *models.SubmissionRecord) error

	// List returns records matching filter, oldest first
	List(ctx context.Context, filter Filter) ([]*models.SubmissionRecord, error)

	// Prune deletes records that finished before the cutoff and reports how many were removed
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Close releases the underlying resources
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Outcome string
	DocID   string
	Since   time.Time
	Limit   int
}

// Matches reports whether record passes the filter, ignoring Limit.
func (f Filter) Matches(record *models.SubmissionRecord) bool {
	if f.Outcome != "" && record.Outcome != f.Outcome {
		return false
	}
	if f.DocID != "" && record.DocID != f.DocID {
		return false
	}
	if !f.Since.IsZero() && record.StartedAt.Before(f.Since) {
		return false
	}
	return true
}
