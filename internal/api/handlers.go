// Package api serves a read-only status API next to the metrics endpoint:
// pool state, journaled submissions and outcome counters.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"submitter/internal/journal"
	"submitter/internal/models"
	"submitter/internal/stats"
	"submitter/internal/version"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var validOutcomes = []string{
	models.OutcomeOK,
	models.OutcomeInterrupted,
	models.OutcomeSerializationError,
	models.OutcomeTransportError,
}

// PoolState is the read side of the permit pool.
type PoolState interface {
	Capacity() int
	Available() int
	Granted() int
	Window() time.Duration
}

// Lister reads journaled submissions.
type Lister interface {
	List(ctx context.Context, filter journal.Filter) ([]*models.SubmissionRecord, error)
}

// Totaler reads outcome counters.
type Totaler interface {
	Totals(ctx context.Context) (stats.Counters, error)
}

// Handlers serves the status endpoints. Every dependency is optional; a
// missing one is reported as disabled.
type Handlers struct {
	pool    PoolState
	journal Lister
	stats   Totaler
	version version.Info
	logger  *slog.Logger
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

func WithPool(pool PoolState) HandlerOption {
	return func(h *Handlers) { h.pool = pool }
}

func WithJournal(j Lister) HandlerOption {
	return func(h *Handlers) { h.journal = j }
}

func WithStats(s Totaler) HandlerOption {
	return func(h *Handlers) { h.stats = s }
}

func WithVersion(v version.Info) HandlerOption {
	return func(h *Handlers) { h.version = v }
}

func NewHandlers(opts ...HandlerOption) *Handlers {
	h := &Handlers{
		logger: slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /api/v1/health
// Returns 503 when a database journal cannot be reached.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthResponse()
	response.Version = h.version.Version
	response.InstanceID = h.version.InstanceID

	if h.pool != nil {
		response.Pool = &models.PoolStatus{
			Capacity:  h.pool.Capacity(),
			Available: h.pool.Available(),
			Granted:   h.pool.Granted(),
			Window:    h.pool.Window().String(),
		}
	}

	switch j := h.journal.(type) {
	case nil:
		response.AddComponent("journal", models.StatusDisabled, "")
	case interface{ Ping(context.Context) error }:
		if err := j.Ping(r.Context()); err != nil {
			response.AddComponent("journal", models.StatusUnhealthy, err.Error())
		} else {
			response.AddComponent("journal", models.StatusHealthy, "")
		}
	default:
		response.AddComponent("journal", models.StatusHealthy, "")
	}

	if h.stats == nil {
		response.AddComponent("stats", models.StatusDisabled, "")
	} else {
		response.AddComponent("stats", models.StatusHealthy, "")
	}

	status := http.StatusOK
	if response.Status != models.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

// ListSubmissions handles GET /api/v1/submissions
// Query parameters: outcome, doc_id, since (RFC 3339), limit.
func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Journal is not enabled")
		return
	}

	filter, msg := parseFilter(r)
	if msg != "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, msg)
		return
	}

	records, err := h.journal.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list submissions", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to read journal")
		return
	}
	if records == nil {
		records = []*models.SubmissionRecord{}
	}

	h.writeJSONResponse(w, http.StatusOK, &models.SubmissionsResponse{
		Submissions: records,
		Count:       len(records),
	})
}

// Stats handles GET /api/v1/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Stats are not enabled")
		return
	}

	totals, err := h.stats.Totals(r.Context())
	if err != nil {
		h.logger.Error("Failed to read stats", "error", err)
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Stats store unavailable")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.StatsResponse{
		Totals:    totals,
		Timestamp: time.Now(),
	})
}

// parseFilter returns a non-empty message when a parameter is invalid.
func parseFilter(r *http.Request) (journal.Filter, string) {
	q := r.URL.Query()
	filter := journal.Filter{
		Outcome: q.Get("outcome"),
		DocID:   q.Get("doc_id"),
		Limit:   defaultListLimit,
	}

	if filter.Outcome != "" && !slices.Contains(validOutcomes, filter.Outcome) {
		return filter, "Unknown outcome: " + filter.Outcome
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, "since must be an RFC 3339 timestamp"
		}
		filter.Since = t
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return filter, "limit must be a positive integer"
		}
		filter.Limit = min(n, maxListLimit)
	}

	return filter, ""
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written.
		h.logger.Error("Error encoding JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
