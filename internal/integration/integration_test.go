package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submitter/internal/api"
	"submitter/internal/config"
	"submitter/internal/journal"
	"submitter/internal/models"
	"submitter/internal/observability"
	"submitter/internal/ratelimit"
	"submitter/internal/stats"
	"submitter/internal/submit"
	"submitter/internal/version"
)

// Integration tests that exercise config, pool, gateway, journal and the
// status API together against a stub endpoint.

func TestIntegration_SubmitAndInspect(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	var mu sync.Mutex
	var received []models.Document
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc models.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, doc)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer endpoint.Close()

	configFile := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
limiter:
  time_unit: ms
  window_count: 100
  request_limit: 3
endpoint:
  url: "`+endpoint.URL+`"
  timeout: 5s
journal:
  enabled: true
  type: sqlite
  dsn: "`+filepath.Join(tempDir, "journal.db")+`"
stats:
  enabled: true
  type: memory
`), 0644))

	cfg, err := config.Load(configFile)
	require.NoError(t, err)

	window, err := cfg.Limiter.Window()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, window)

	pool, err := ratelimit.NewPermitPool(cfg.Limiter.RequestLimit, window)
	require.NoError(t, err)
	defer pool.Stop()

	j, err := journal.New(ctx, cfg.Journal)
	require.NoError(t, err)
	defer j.Close()

	store, closeStore, err := stats.New(ctx, cfg.Stats)
	require.NoError(t, err)
	defer closeStore()

	gateway, err := submit.NewGateway(pool,
		submit.NewHTTPTransport(cfg.Endpoint.URL, &http.Client{Timeout: cfg.Endpoint.Timeout}),
		submit.WithRecorders(j, store),
	)
	require.NoError(t, err)

	// Nine documents at three per window: the last batch waits two ticks.
	const total = 9
	var accepted atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := range total {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := &models.Document{DocID: models.String("doc-" + string(rune('a'+i))), DocType: models.String("LP_INTRODUCE_GOODS")}
			status, err := gateway.Submit(ctx, doc, "sig")
			if err == nil && status == http.StatusCreated {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(total), accepted.Load())
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
	mu.Lock()
	assert.Len(t, received, total)
	mu.Unlock()

	status := api.NewHandlers(api.WithPool(pool), api.WithJournal(j), api.WithStats(store), api.WithVersion(version.Info{Version: "it"}))
	server := httptest.NewServer(observability.NewMetricsServer(0, "/metrics", nil, nil, status.Register).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/submissions?outcome=ok&limit=1000")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed models.SubmissionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Equal(t, total, listed.Count)

	fromJournal, err := j.List(ctx, journal.Filter{})
	require.NoError(t, err)
	if diff := cmp.Diff(fromJournal, listed.Submissions); diff != "" {
		t.Errorf("journal and API disagree (-journal +api):\n%s", diff)
	}

	resp, err = http.Get(server.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var counters models.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&counters))
	assert.Equal(t, int64(total), counters.Totals[models.OutcomeOK])

	resp, err = http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(body))
}

func TestIntegration_ShutdownWithWaiters(t *testing.T) {
	var calls atomic.Int64
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	client, err := submit.NewClient(time.Hour, 1, submit.WithTransport(submit.NewHTTPTransport(endpoint.URL, nil)))
	require.NoError(t, err)

	_, err = client.CreateDocument(context.Background(), &models.Document{DocID: models.String("first")}, "sig")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.CreateDocument(ctx, &models.Document{DocID: models.String("second")}, "sig")
		errCh <- err
	}()

	// Shutdown does not release the waiter; only its own ctx does.
	client.Shutdown()
	client.Shutdown()
	select {
	case err := <-errCh:
		t.Fatalf("waiter returned before cancellation: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, submit.ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe cancellation")
	}
	assert.Equal(t, int64(1), calls.Load())
}
