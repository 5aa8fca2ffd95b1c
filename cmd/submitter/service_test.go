package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submitter/internal/journal"
	"submitter/internal/models"
	"submitter/internal/observability"
	"submitter/internal/stats"
	"submitter/internal/submit"
	"submitter/internal/version"
)

func stubEndpoint(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer sig" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeDocs(t *testing.T, ids ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		data, err := json.Marshal(models.Document{DocID: models.String(id), DocType: models.String("LP_INTRODUCE_GOODS")})
		require.NoError(t, err)
		path := filepath.Join(dir, id+".json")
		require.NoError(t, os.WriteFile(path, data, 0600))
		paths = append(paths, path)
	}
	return paths
}

func testConfig(endpoint string) *models.Config {
	cfg := models.NewDefaultConfig()
	cfg.Endpoint.URL = endpoint
	cfg.Endpoint.Timeout = 5 * time.Second
	cfg.Limiter.RequestLimit = 5
	cfg.Journal.Enabled = true
	cfg.Journal.Type = models.JournalTypeMemory
	cfg.Journal.PruneSchedule = "@every 1h"
	cfg.Stats.Enabled = true
	cfg.Stats.Type = models.StatsTypeMemory
	return cfg
}

func TestService_SubmitAllRecordsEveryOutcome(t *testing.T) {
	srv, calls := stubEndpoint(t, http.StatusOK)
	ctx := context.Background()

	svc, err := newService(ctx, testConfig(srv.URL), false)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	paths := writeDocs(t, "doc-1", "doc-2", "doc-3")
	results := submitAll(ctx, svc.gateway, paths, "sig", 0)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		assert.NoError(t, r.Err)
		assert.Equal(t, http.StatusOK, r.Status)
		assert.False(t, r.failed())
	}
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 3, svc.pool.Granted())

	records, err := svc.journal.List(ctx, journal.Filter{Outcome: models.OutcomeOK})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	mem, ok := svc.stats.(*stats.MemoryStore)
	require.True(t, ok)
	assert.Equal(t, int64(3), mem.Total()[models.OutcomeOK])
}

func TestService_UnreadableDocumentTakesNoPermit(t *testing.T) {
	srv, calls := stubEndpoint(t, http.StatusOK)
	ctx := context.Background()

	svc, err := newService(ctx, testConfig(srv.URL), false)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	missing := filepath.Join(t.TempDir(), "absent.json")
	results := submitAll(ctx, svc.gateway, []string{missing}, "sig", 1)

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Zero(t, calls.Load())
	assert.Zero(t, svc.pool.Granted())
}

func TestService_MoreDocumentsThanCapacity(t *testing.T) {
	srv, calls := stubEndpoint(t, http.StatusOK)
	ctx := context.Background()

	cfg := testConfig(srv.URL)
	cfg.Limiter.RequestLimit = 2
	cfg.Limiter.TimeUnit = "ms"
	cfg.Limiter.WindowCount = 50

	svc, err := newService(ctx, cfg, false)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	start := time.Now()
	results := submitAll(ctx, svc.gateway, writeDocs(t, "a", "b", "c", "d", "e", "f"), "sig", 0)
	elapsed := time.Since(start)

	var out bytes.Buffer
	assert.Zero(t, printResults(&out, results))
	assert.Equal(t, int64(6), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond, "six documents at two per window need two extra ticks")
}

func TestService_AcquireTimeout(t *testing.T) {
	srv, _ := stubEndpoint(t, http.StatusOK)
	ctx := context.Background()

	cfg := testConfig(srv.URL)
	cfg.Limiter.RequestLimit = 1
	cfg.Limiter.TimeUnit = "hour"
	cfg.Limiter.AcquireTimeout = 20 * time.Millisecond

	svc, err := newService(ctx, cfg, false)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	results := submitAll(ctx, svc.gateway, writeDocs(t, "first", "second"), "sig", 1)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, submit.ErrInterrupted)
}

func TestNewService_InvalidRateLimit(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Limiter.RequestLimit = 0

	_, err := newService(context.Background(), cfg, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, submit.ErrConfiguration)
}

func TestNewService_Instrumented(t *testing.T) {
	srv, _ := stubEndpoint(t, http.StatusOK)
	provider, err := observability.Setup(
		models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090},
		models.ObservabilityConfig{ServiceName: "test"},
		version.Info{},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx := context.Background()
	svc, err := newService(ctx, testConfig(srv.URL), true)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	results := submitAll(ctx, svc.gateway, writeDocs(t, "m-1"), "sig", 0)
	require.NoError(t, results[0].Err)

	families, err := provider.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "ratelimit_permits_available")
	assert.Contains(t, joined, "submit_transport_duration")
}

func TestService_HealthAndClose(t *testing.T) {
	svc, err := newService(context.Background(), testConfig("http://127.0.0.1:1"), false)
	require.NoError(t, err)

	assert.NoError(t, svc.Health(context.Background()))

	svc.Close()
	svc.Close()
	assert.Error(t, svc.Health(context.Background()))
}

func TestPrintResults(t *testing.T) {
	results := []result{
		{Path: "a.json", DocID: "a", Status: 200},
		{Path: "b.json", DocID: "b", Status: 500},
		{Path: "c.json", Err: errors.New("boom")},
	}

	var out bytes.Buffer
	failed := printResults(&out, results)

	assert.Equal(t, 2, failed)
	assert.Equal(t, "a.json\ta\t200\nb.json\tb\t500\nc.json\t\terror: boom\n", out.String())
}
