// Package submit sequences permit acquisition with document delivery. A
// Gateway admits each call through a permit pool, serializes the document,
// posts it and reports the status code, presenting the whole sequence as one
// blocking call. There are no retries: every failure reaches the caller, and a
// permit spent on a failed call is not refunded.
package submit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"submitter/internal/models"
	"submitter/internal/ratelimit"
)

// Recorder receives the outcome of every submission. Recording is best effort.
type Recorder interface {
	Record(ctx context.Context, record *models.SubmissionRecord) error
}

// Pacer delays a call until its next slot.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Gateway submits documents through a permit pool.
type Gateway struct {
	pool      ratelimit.Acquirer
	transport Transport
	encoder   Encoder
	pacer     Pacer
	recorders []Recorder
	logger    *slog.Logger
	now       func() time.Time
	// Bounds pacing plus permit wait. Zero waits until ctx is done.
	acquireTimeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithEncoder replaces the default JSON encoder.
func WithEncoder(encoder Encoder) Option {
	return func(g *Gateway) { g.encoder = encoder }
}

// WithPacer spaces calls before they take a permit.
func WithPacer(pacer Pacer) Option {
	return func(g *Gateway) { g.pacer = pacer }
}

// WithRecorders adds outcome recorders.
func WithRecorders(recorders ...Recorder) Option {
	return func(g *Gateway) { g.recorders = append(g.recorders, recorders...) }
}

// WithGatewayLogger sets the gateway's logger.
func WithGatewayLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAcquireTimeout bounds how long a call may wait for admission. The
// remote call itself is governed by the caller's ctx and the transport.
func WithAcquireTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.acquireTimeout = d }
}

// WithClock overrides the time source used for submission records.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a gateway admitting calls through pool and delivering
// them with transport.
func NewGateway(pool ratelimit.Acquirer, transport Transport, opts ...Option) (*Gateway, error) {
	if pool == nil {
		return nil, NewConfigurationError("permit pool is required", nil)
	}
	if transport == nil {
		return nil, NewConfigurationError("transport is required", nil)
	}

	g := &Gateway{
		pool:      pool,
		transport: transport,
		encoder:   JSONEncoder{},
		logger:    slog.Default().With("component", "submit.gateway"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Submit blocks until a permit is granted, then serializes document and sends
// it with signature as the bearer credential. It returns the response status
// code, or an *Error matching ErrInterrupted, ErrSerialization or ErrTransport.
func (g *Gateway) Submit(ctx context.Context, document any, signature string) (int, error) {
	record := models.NewSubmissionRecord(documentID(document), g.now())

	status, err := g.submit(ctx, document, signature)

	record.Finish(outcomeOf(err), status, err, g.now())
	g.report(ctx, record)

	return status, err
}

func (g *Gateway) submit(ctx context.Context, document any, signature string) (int, error) {
	if err := g.admit(ctx); err != nil {
		return 0, NewInterruptedError(err)
	}

	// From here on the permit is spent whatever happens.
	body, err := g.encoder.Encode(document)
	if err != nil {
		return 0, NewSerializationError(err)
	}

	status, err := g.transport.Send(ctx, body, signature)
	if err != nil {
		return 0, NewTransportError(err)
	}
	return status, nil
}

func (g *Gateway) admit(ctx context.Context) error {
	if g.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}

	if g.pacer != nil {
		if err := g.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	return g.pool.Acquire(ctx)
}

func (g *Gateway) report(ctx context.Context, record *models.SubmissionRecord) {
	attrs := []any{
		"submission_id", record.ID,
		"doc_id", record.DocID,
		"outcome", record.Outcome,
		"status", record.StatusCode,
		"duration", record.Duration,
	}
	if record.Succeeded() {
		g.logger.Debug("Document submitted", attrs...)
	} else {
		g.logger.Warn("Document submission failed", append(attrs, "error", record.Error)...)
	}

	// An interrupted caller's ctx is already done; recording must still happen.
	recordCtx := context.WithoutCancel(ctx)
	for _, r := range g.recorders {
		if err := r.Record(recordCtx, record); err != nil {
			g.logger.Warn("Failed to record submission", "submission_id", record.ID, "error", err)
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return models.OutcomeOK
	case errors.Is(err, ErrInterrupted):
		return models.OutcomeInterrupted
	case errors.Is(err, ErrSerialization):
		return models.OutcomeSerializationError
	default:
		return models.OutcomeTransportError
	}
}

func documentID(document any) string {
	switch d := document.(type) {
	case *models.Document:
		return d.ID()
	case models.Document:
		return d.ID()
	}
	return ""
}
