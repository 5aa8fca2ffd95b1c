package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"submitter/internal/models"
)

// MemoryJournal keeps records in process memory. Records are lost on restart.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []*models.SubmissionRecord
	closed  bool
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Record stores a copy of record
func (m *MemoryJournal) Record(ctx context.Context, record *models.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	recordCopy := *record
	m.records = append(m.records, &recordCopy)
	return nil
}

// List returns copies of matching records ordered by start time
func (m *MemoryJournal) List(ctx context.Context, filter Filter) ([]*models.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	result := make([]*models.SubmissionRecord, 0)
	for _, r := range m.records {
		if filter.Matches(r) {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Prune removes records that finished before the cutoff
func (m *MemoryJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	kept := make([]*models.SubmissionRecord, 0, len(m.records))
	for _, r := range m.records {
		if !r.FinishedAt.Before(before) {
			kept = append(kept, r)
		}
	}
	removed := int64(len(m.records) - len(kept))
	m.records = kept
	return removed, nil
}

// Close marks the journal closed
func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
