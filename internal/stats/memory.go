package stats

import (
	"context"
	"maps"
	"sync"
	"time"

	"submitter/internal/models"
)

// MemoryStore keeps counters in memory. Useful for tests and single runs.
// It never expires anything.
type MemoryStore struct {
	mu       sync.Mutex
	total    Counters
	byMinute map[string]Counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		total:    make(Counters),
		byMinute: make(map[string]Counters),
	}
}

func (s *MemoryStore) Record(_ context.Context, record *models.SubmissionRecord) error {
	bucket := minuteBucket(record.FinishedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[record.Outcome]++
	c, ok := s.byMinute[bucket]
	if !ok {
		c = make(Counters)
		s.byMinute[bucket] = c
	}
	c[record.Outcome]++
	return nil
}

// Total returns a copy of the all-time counters.
func (s *MemoryStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.total)
}

// Totals implements Store.
func (s *MemoryStore) Totals(context.Context) (Counters, error) {
	return s.Total(), nil
}

// Minute returns a copy of the counters for the minute containing at.
func (s *MemoryStore) Minute(at time.Time) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byMinute[minuteBucket(at)])
}

func minuteBucket(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Format("200601021504")
}
