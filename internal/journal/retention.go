package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler prunes old journal records on a cron schedule.
type RetentionScheduler struct {
	journal   Journal
	retention time.Duration
	schedule  string
	now       func() time.Time
	cron      *cron.Cron
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewRetentionScheduler creates a scheduler deleting records older than
// retentionDays whenever schedule (standard 5-field cron syntax) fires.
func NewRetentionScheduler(j Journal, retentionDays int, schedule string) *RetentionScheduler {
	return &RetentionScheduler{
		journal:   j,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		now:       time.Now,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "journal.retention"),
	}
}

// Start schedules pruning. An empty schedule or zero retention leaves the
// scheduler idle.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.retention <= 0 {
		s.logger.Info("journal retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.PruneNow(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("journal retention scheduler started",
		"schedule", s.schedule,
		"retention", s.retention,
	)
	return nil
}

// PruneNow deletes every record older than the retention period.
func (s *RetentionScheduler) PruneNow(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.journal.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("journal pruning failed", "error", err)
		return 0, err
	}
	s.logger.Info("journal pruned", "removed", removed, "cutoff", cutoff)
	return removed, nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}
