package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// PermitPool is a bounded pool of permits replenished in bulk on a fixed cadence.
//
// Every tick returns exactly the number of permits granted since the previous
// tick, not "capacity minus available". A permit granted while a tick is in
// progress is returned on the following tick, so a window boundary can admit
// slightly more than capacity calls, but the pool never hands back more permits
// than were taken.
type PermitPool struct {
	capacity int
	window   time.Duration

	sem     *semaphore.Weighted
	held    atomic.Int64 // units currently taken from sem
	granted atomic.Int64 // permits granted since the last replenishment

	logger   *slog.Logger
	observer func(released int)

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
	closed  bool
}

// PoolOption configures a PermitPool.
type PoolOption func(*PermitPool)

// WithLogger sets the logger used for replenishment events.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *PermitPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers a callback invoked from the replenishment goroutine
// with the number of permits returned on each tick.
func WithObserver(fn func(released int)) PoolOption {
	return func(p *PermitPool) { p.observer = fn }
}

// NewPermitPool creates a pool holding capacity permits and starts the
// goroutine that replenishes it every window. Nothing is started when the
// arguments are invalid.
func NewPermitPool(capacity int, window time.Duration, opts ...PoolOption) (*PermitPool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidWindow, window)
	}

	p := &PermitPool{
		capacity: capacity,
		window:   window,
		sem:      semaphore.NewWeighted(int64(capacity)),
		logger:   slog.Default().With("component", "ratelimit.pool"),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run()
	return p, nil
}

// Acquire takes one permit, blocking until one is available. Waiters are
// served in arrival order. If ctx is done first, Acquire returns an error
// wrapping ErrInterrupted and the pool is left untouched.
func (p *PermitPool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	p.grant()
	return nil
}

// TryAcquire takes one permit if it is available without waiting.
func (p *PermitPool) TryAcquire() bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.grant()
	return true
}

// held is bumped before granted so that granted never exceeds the units
// actually taken from the semaphore.
func (p *PermitPool) grant() {
	p.held.Add(1)
	p.granted.Add(1)
}

// Stop stops the replenishment goroutine and waits for it to exit. Callers
// already blocked in Acquire stay blocked until their context is done.
// Calling Stop more than once is a no-op.
func (p *PermitPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	<-p.stopped
}

// Capacity returns the configured number of permits per window.
func (p *PermitPool) Capacity() int {
	return p.capacity
}

// Window returns the replenishment cadence.
func (p *PermitPool) Window() time.Duration {
	return p.window
}

// Available returns the approximate number of permits that can be taken
// without blocking.
func (p *PermitPool) Available() int {
	return p.capacity - int(p.held.Load())
}

// Granted returns the number of permits granted since the last replenishment.
func (p *PermitPool) Granted() int {
	return int(p.granted.Load())
}

func (p *PermitPool) run() {
	ticker := time.NewTicker(p.window)
	defer ticker.Stop()
	defer close(p.stopped)

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.replenish()
		}
	}
}

// replenish returns every permit granted since the previous call.
func (p *PermitPool) replenish() int {
	n := p.granted.Swap(0)
	if n > 0 {
		p.held.Add(-n)
		p.sem.Release(n)
	}

	p.logger.Debug("Permits replenished",
		"released", n,
		"available", p.Available(),
		"capacity", p.capacity,
	)
	if p.observer != nil {
		p.observer(int(n))
	}
	return int(n)
}
