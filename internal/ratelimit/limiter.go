// Package ratelimit provides client-side admission control for outbound calls.
// A PermitPool admits at most capacity calls per replenishment window and blocks
// further callers until the window's consumed permits are handed back by a
// background ticker. A Pacer optionally spreads admitted calls within a window.
package ratelimit

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCapacity is returned when a pool is constructed with a
	// non-positive capacity.
	ErrInvalidCapacity = errors.New("ratelimit: capacity must be positive")

	// ErrInvalidWindow is returned when a pool is constructed with a
	// non-positive replenishment window.
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")

	// ErrInterrupted is returned when a wait for a permit or a pacing slot is
	// cancelled through its context. The cancelled wait holds no permit.
	ErrInterrupted = errors.New("ratelimit: wait interrupted")
)

// Acquirer hands out one permit per call, blocking until one is available or
// ctx is done. Implementations must be safe for concurrent use.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Ensure PermitPool implements Acquirer
var _ Acquirer = (*PermitPool)(nil)
