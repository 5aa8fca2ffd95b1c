package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"submitter/internal/journal"
	"submitter/internal/models"
	"submitter/internal/observability"
	"submitter/internal/ratelimit"
	"submitter/internal/stats"
	"submitter/internal/submit"
)

// service owns the permit pool, the gateway and every optional recorder.
type service struct {
	pool      *ratelimit.PermitPool
	gateway   *submit.Gateway
	journal   journal.Journal
	stats     stats.Store
	metrics   *observability.PoolMetrics
	retention *journal.RetentionScheduler
	closers   []func() error
	closed    atomic.Bool
}

// newService wires the pool and gateway from cfg. When instrument is set the
// pool and transport report to the global otel providers.
func newService(ctx context.Context, cfg *models.Config, instrument bool) (_ *service, err error) {
	svc := &service{}
	defer func() {
		if err != nil {
			svc.Close()
		}
	}()

	window, err := cfg.Limiter.Window()
	if err != nil {
		return nil, submit.NewConfigurationError("invalid limiter window", err)
	}

	var poolOpts []ratelimit.PoolOption
	if instrument {
		svc.metrics, err = observability.NewPoolMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to create pool metrics: %w", err)
		}
		poolOpts = append(poolOpts, ratelimit.WithObserver(svc.metrics.Observe))
	}

	svc.pool, err = ratelimit.NewPermitPool(cfg.Limiter.RequestLimit, window, poolOpts...)
	if err != nil {
		return nil, submit.NewConfigurationError("invalid rate limit", err)
	}

	var transport submit.Transport = submit.NewHTTPTransport(cfg.Endpoint.URL, &http.Client{Timeout: cfg.Endpoint.Timeout})
	if instrument {
		if err := svc.metrics.Register(svc.pool); err != nil {
			return nil, fmt.Errorf("failed to register pool metrics: %w", err)
		}
		transport, err = observability.NewInstrumentedTransport(transport)
		if err != nil {
			return nil, fmt.Errorf("failed to instrument transport: %w", err)
		}
	}

	gatewayOpts := []submit.Option{submit.WithAcquireTimeout(cfg.Limiter.AcquireTimeout)}
	if pacer := ratelimit.NewPacer(cfg.Limiter.MinInterval); pacer != nil {
		gatewayOpts = append(gatewayOpts, submit.WithPacer(pacer))
	}

	if cfg.Journal.Enabled {
		svc.journal, err = journal.New(ctx, cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		svc.closers = append(svc.closers, svc.journal.Close)
		gatewayOpts = append(gatewayOpts, submit.WithRecorders(svc.journal))

		svc.retention = journal.NewRetentionScheduler(svc.journal, cfg.Journal.RetentionDays, cfg.Journal.PruneSchedule)
		if err := svc.retention.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start journal retention: %w", err)
		}
	}

	if cfg.Stats.Enabled {
		store, closeStore, err := stats.New(ctx, cfg.Stats)
		if err != nil {
			return nil, fmt.Errorf("failed to open stats store: %w", err)
		}
		svc.stats = store
		svc.closers = append(svc.closers, closeStore)
		gatewayOpts = append(gatewayOpts, submit.WithRecorders(store))
	}

	svc.gateway, err = submit.NewGateway(svc.pool, transport, gatewayOpts...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Health fails once the service is closed or when a database journal stops
// answering pings.
func (s *service) Health(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("submitter is shutting down")
	}
	if p, ok := s.journal.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}

// Close stops the pool and retention job, then closes recorders in reverse
// order of creation. Safe to call more than once.
func (s *service) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.retention != nil {
		s.retention.Stop()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.metrics != nil {
		if err := s.metrics.Unregister(); err != nil {
			slog.Warn("Failed to unregister pool metrics", "error", err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("Failed to close recorder", "error", err)
		}
	}
}

// result is the outcome of one document file.
type result struct {
	Path   string
	DocID  string
	Status int
	Err    error
}

func (r result) failed() bool {
	return r.Err != nil || r.Status < 200 || r.Status > 299
}

// submitAll submits every file concurrently and returns results in input
// order. A file that cannot be loaded fails without taking a permit.
func submitAll(ctx context.Context, gateway *submit.Gateway, paths []string, signature string, limit int) []result {
	results := make([]result, len(paths))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, path := range paths {
		g.Go(func() error {
			res := result{Path: path}
			doc, err := models.LoadDocument(path)
			if err != nil {
				res.Err = err
				results[i] = res
				return nil
			}
			res.DocID = doc.ID()
			res.Status, res.Err = gateway.Submit(ctx, doc, signature)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// printResults writes one tab-separated line per document and returns the
// number of failures.
func printResults(w io.Writer, results []result) int {
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s\t%s\terror: %v\n", r.Path, r.DocID, r.Err)
		default:
			fmt.Fprintf(w, "%s\t%s\t%d\n", r.Path, r.DocID, r.Status)
		}
		if r.failed() {
			failed++
		}
	}
	return failed
}
