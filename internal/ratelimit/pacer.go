package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive calls. It smooths the
// burst a PermitPool allows at the start of each window. A nil Pacer never waits.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer returns a Pacer spacing calls at least minInterval apart, or nil
// when minInterval is not positive.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		return nil
	}
	return &Pacer{
		interval: minInterval,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the next call slot. A cancelled or deadline-bound wait
// returns an error wrapping ErrInterrupted.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}

// Interval returns the minimum spacing between calls.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}
