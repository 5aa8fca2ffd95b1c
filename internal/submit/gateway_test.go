package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submitter/internal/models"
	"submitter/internal/ratelimit"
)

// transportFunc adapts a function to the Transport interface.
type transportFunc func(ctx context.Context, body []byte, signature string) (int, error)

func (f transportFunc) Send(ctx context.Context, body []byte, signature string) (int, error) {
	return f(ctx, body, signature)
}

func okTransport(calls *atomic.Int64) Transport {
	return transportFunc(func(ctx context.Context, body []byte, signature string) (int, error) {
		if calls != nil {
			calls.Add(1)
		}
		return http.StatusOK, nil
	})
}

type captureRecorder struct {
	mu      sync.Mutex
	records []*models.SubmissionRecord
	err     error
}

func (r *captureRecorder) Record(ctx context.Context, record *models.SubmissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

func (r *captureRecorder) all() []*models.SubmissionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.SubmissionRecord(nil), r.records...)
}

func newPool(t *testing.T, capacity int, window time.Duration) *ratelimit.PermitPool {
	t.Helper()
	pool, err := ratelimit.NewPermitPool(capacity, window)
	require.NoError(t, err)
	t.Cleanup(pool.Stop)
	return pool
}

func fullDocument() *models.Document {
	return &models.Document{
		Description:    &models.Description{ParticipantInn: models.String("7701234567")},
		DocID:          models.String("doc-42"),
		DocStatus:      models.String("DRAFT"),
		DocType:        models.String("LP_INTRODUCE_GOODS"),
		ImportRequest:  true,
		OwnerInn:       models.String("7701111111"),
		ParticipantInn: models.String("7701234567"),
		ProducerInn:    models.String("7702222222"),
		ProductionDate: models.String("2024-01-15"),
		ProductionType: models.String("OWN_PRODUCTION"),
		Products: []models.Product{
			{
				CertificateDocument:       models.String("CONFORMITY_CERTIFICATE"),
				CertificateDocumentDate:   models.String("2023-12-01"),
				CertificateDocumentNumber: models.String("RU-123"),
				OwnerInn:                  models.String("7701111111"),
				ProducerInn:               models.String("7702222222"),
				ProductionDate:            models.String("2024-01-15"),
				TnvedCode:                 models.String("6401100000"),
				UitCode:                   models.String("010460043993125621JgXJ5.T"),
				UituCode:                  models.String(""),
			},
			{
				TnvedCode: models.String("6402"),
				UitCode:   models.String("010460043993125621abc"),
			},
		},
		RegDate:   models.String("2024-01-20"),
		RegNumber: models.String("REG-7"),
	}
}

func TestNewGateway_RequiresDependencies(t *testing.T) {
	_, err := NewGateway(nil, okTransport(nil))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewGateway(newPool(t, 1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGateway_Submit_RoundTrip(t *testing.T) {
	var (
		received   models.Document
		rawFields  map[string]json.RawMessage
		authHeader string
		ctHeader   string
		method     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		authHeader = r.Header.Get("Authorization")
		ctHeader = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_ = json.Unmarshal(body, &rawFields)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"value":"ignored"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(newPool(t, 5, time.Hour), NewHTTPTransport(server.URL, server.Client()))
	require.NoError(t, err)

	doc := fullDocument()
	status, err := gateway.Submit(context.Background(), doc, "signed-token")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "Bearer signed-token", authHeader)
	assert.Equal(t, "application/json", ctHeader)
	if diff := cmp.Diff(*doc, received); diff != "" {
		t.Errorf("document changed in transit (-want +got):\n%s", diff)
	}
	for _, field := range []string{"description", "doc_id", "import_request", "production_type", "products", "reg_number"} {
		assert.Contains(t, rawFields, field)
	}
}

func TestGateway_Submit_NonSuccessStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway, err := NewGateway(newPool(t, 1, time.Hour), NewHTTPTransport(server.URL, server.Client()))
	require.NoError(t, err)

	status, err := gateway.Submit(context.Background(), fullDocument(), "bad")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGateway_Submit_SerializationErrorSpendsPermit(t *testing.T) {
	var calls atomic.Int64
	pool := newPool(t, 3, time.Hour)
	recorder := &captureRecorder{}
	gateway, err := NewGateway(pool, okTransport(&calls), WithRecorders(recorder))
	require.NoError(t, err)

	status, err := gateway.Submit(context.Background(), map[string]any{"bad": make(chan int)}, "sig")

	assert.ErrorIs(t, err, ErrSerialization)
	var submitErr *Error
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, CodeSerialization, submitErr.Code)
	assert.Zero(t, status)
	assert.Zero(t, calls.Load(), "nothing should be sent")
	assert.Equal(t, 2, pool.Available(), "the permit is not refunded")
	assert.Equal(t, 1, pool.Granted())

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeSerializationError, records[0].Outcome)
}

func TestGateway_Submit_TransportError(t *testing.T) {
	pool := newPool(t, 2, time.Hour)
	failing := transportFunc(func(ctx context.Context, body []byte, signature string) (int, error) {
		return 0, errors.New("connection reset")
	})
	gateway, err := NewGateway(pool, failing)
	require.NoError(t, err)

	status, err := gateway.Submit(context.Background(), fullDocument(), "sig")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, status)
	assert.Equal(t, 1, pool.Granted(), "a failed send still spends its permit")
}

func TestGateway_Submit_Interrupted(t *testing.T) {
	var calls atomic.Int64
	pool := newPool(t, 1, time.Hour)
	recorder := &captureRecorder{}
	gateway, err := NewGateway(pool, okTransport(&calls), WithRecorders(recorder))
	require.NoError(t, err)

	_, err = gateway.Submit(context.Background(), fullDocument(), "sig")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = gateway.Submit(ctx, fullDocument(), "sig")

	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, ratelimit.ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, pool.Granted(), "interrupted wait must not be counted")

	records := recorder.all()
	require.Len(t, records, 2)
	assert.Equal(t, models.OutcomeInterrupted, records[1].Outcome)
	assert.Equal(t, "doc-42", records[1].DocID)
}

func TestGateway_Submit_AcquireTimeout(t *testing.T) {
	pool := newPool(t, 1, time.Hour)
	gateway, err := NewGateway(pool, okTransport(nil), WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = gateway.Submit(context.Background(), fullDocument(), "sig")
	require.NoError(t, err)

	start := time.Now()
	_, err = gateway.Submit(context.Background(), fullDocument(), "sig")
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateway_Submit_AcquireTimeoutDoesNotBoundSend(t *testing.T) {
	pool := newPool(t, 1, time.Hour)
	slow := transportFunc(func(ctx context.Context, _ []byte, _ string) (int, error) {
		select {
		case <-time.After(60 * time.Millisecond):
			return 200, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	gateway, err := NewGateway(pool, slow, WithAcquireTimeout(10*time.Millisecond))
	require.NoError(t, err)

	status, err := gateway.Submit(context.Background(), fullDocument(), "sig")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
}

func TestGateway_Submit_PacerInterruptedKeepsPermit(t *testing.T) {
	pool := newPool(t, 5, time.Hour)
	pacer := ratelimit.NewPacer(time.Hour)
	gateway, err := NewGateway(pool, okTransport(nil), WithPacer(pacer))
	require.NoError(t, err)

	_, err = gateway.Submit(context.Background(), fullDocument(), "sig")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = gateway.Submit(ctx, fullDocument(), "sig")
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 4, pool.Available())
}

func TestGateway_Submit_RecorderErrorIgnored(t *testing.T) {
	recorder := &captureRecorder{err: errors.New("journal offline")}
	gateway, err := NewGateway(newPool(t, 1, time.Hour), okTransport(nil), WithRecorders(recorder))
	require.NoError(t, err)

	status, err := gateway.Submit(context.Background(), fullDocument(), "sig")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, recorder.all(), 1)
}

func TestGateway_Submit_RecordTimestamps(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}
	recorder := &captureRecorder{}
	gateway, err := NewGateway(newPool(t, 1, time.Hour), okTransport(nil), WithRecorders(recorder), WithClock(clock))
	require.NoError(t, err)

	_, err = gateway.Submit(context.Background(), *fullDocument(), "sig")
	require.NoError(t, err)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "doc-42", records[0].DocID)
	assert.Equal(t, time.Second, records[0].Duration)
	assert.Equal(t, http.StatusOK, records[0].StatusCode)
}

func TestGateway_Submit_ConcurrentCallersAcrossWindows(t *testing.T) {
	const capacity = 3
	const window = 100 * time.Millisecond
	start := time.Now()
	pool := newPool(t, capacity, window)

	var (
		sent     atomic.Int64
		mu       sync.Mutex
		perTick  = make(map[int]int)
		lastSend time.Time
	)
	transport := transportFunc(func(ctx context.Context, body []byte, signature string) (int, error) {
		now := time.Now()
		mu.Lock()
		perTick[int(now.Sub(start)/window)]++
		if now.After(lastSend) {
			lastSend = now
		}
		mu.Unlock()
		sent.Add(1)
		return http.StatusOK, nil
	})
	gateway, err := NewGateway(pool, transport)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	statuses := make([]int, 3*capacity)
	errs := make([]error, 3*capacity)
	for i := 0; i < 3*capacity; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], errs[i] = gateway.Submit(ctx, fullDocument(), "sig")
		}(i)
	}
	wg.Wait()

	for i := range statuses {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, statuses[i])
	}
	assert.Equal(t, int64(3*capacity), sent.Load())

	mu.Lock()
	defer mu.Unlock()
	for bucket, n := range perTick {
		assert.LessOrEqual(t, n, capacity, "window %d admitted too many sends", bucket)
	}
	// The last batch can only go out after the second tick.
	assert.GreaterOrEqual(t, lastSend.Sub(start), 2*window)
}
