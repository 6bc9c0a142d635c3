package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/synapse-gw/internal/admission"
	"github.com/mattjoyce/synapse-gw/internal/api"
	"github.com/mattjoyce/synapse-gw/internal/auth"
	"github.com/mattjoyce/synapse-gw/internal/backend"
	"github.com/mattjoyce/synapse-gw/internal/config"
	"github.com/mattjoyce/synapse-gw/internal/dispatch"
	"github.com/mattjoyce/synapse-gw/internal/events"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/log"
	"github.com/mattjoyce/synapse-gw/internal/metrics"
	"github.com/mattjoyce/synapse-gw/internal/operation"
	"github.com/mattjoyce/synapse-gw/internal/scheduler"
	"github.com/mattjoyce/synapse-gw/internal/storage"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

const (
	validatorToken = "validator-token"
	guestToken     = "guest-token"
	spamToken      = "spam-token"
)

// fakeWorker stands in for a synapse worker's /predictions endpoint.
type fakeWorker struct {
	mu       sync.Mutex
	calls    atomic.Int32
	lastBody map[string]any
	status   int
	reply    string
	delay    time.Duration
}

func (f *fakeWorker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if r.URL.Path != "/predictions" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.lastBody = body
	status, reply, delay := f.status, f.reply, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeWorker) respond(status int, reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.reply = status, reply
}

func (f *fakeWorker) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

type stack struct {
	url     string
	worker  *fakeWorker
	hub     *events.Hub
	store   *history.Store
	metrics *metrics.Metrics
}

func newStack(t *testing.T, workerTimeout time.Duration) *stack {
	t.Helper()
	log.Setup("ERROR")

	worker := &fakeWorker{status: http.StatusOK, reply: `{"output":"data:audio/wav;base64,UklGRiQAAABXQVZF"}`}
	workerSrv := httptest.NewServer(worker)
	t.Cleanup(workerSrv.Close)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := history.New(db)

	m := metrics.New("e2e")
	policy := admission.NewPolicy(config.AdmissionConfig{
		AllowUnknown: true,
		DefaultTrust: 1,
		Deny:         []string{"spammer"},
		Callers:      map[string]float64{"validator-a": 10},
	})

	reg := operation.NewRegistry()
	adapter := backend.New(backend.WithMetrics(m))
	require.NoError(t, reg.Register(synapse.TaskTextToSpeechClone,
		operation.NewTextToSpeechClone(adapter, workerSrv.URL, workerTimeout, policy, nil)))
	require.NoError(t, reg.Register(synapse.TaskAvailableTasks, operation.NewAvailableTasks(reg, policy)))
	reg.Seal()

	sched := scheduler.New(2, nil)
	t.Cleanup(sched.Close)
	hub := events.NewHub(128)

	exec := dispatch.New(reg,
		dispatch.WithScheduler(sched),
		dispatch.WithRecorder(store),
		dispatch.WithEvents(hub),
		dispatch.WithMetrics(m),
	)

	srv, err := api.New(api.Config{
		Version: "e2e",
		Tokens: []auth.TokenConfig{
			{Token: validatorToken, Caller: "validator-a", Scopes: []string{auth.ScopeQueryRW, auth.ScopeTasksRO}},
			{Token: guestToken, Caller: "guest", Scopes: []string{auth.ScopeQueryRW, auth.ScopeTasksRO}},
			{Token: spamToken, Caller: "spammer", Scopes: []string{auth.ScopeQueryRW}},
		},
	}, api.Deps{
		Executor:  exec,
		Tasks:     reg,
		History:   store,
		Events:    hub,
		Scheduler: sched,
		Metrics:   m.Handler(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	gw := httptest.NewServer(srv.Handler())
	t.Cleanup(gw.Close)

	return &stack{url: gw.URL, worker: worker, hub: hub, store: store, metrics: m}
}

func (s *stack) post(t *testing.T, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.url+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *stack) record(t *testing.T, resp *http.Response) *history.Record {
	t.Helper()
	id := resp.Header.Get(api.QueryIDHeader)
	require.NotEmpty(t, id)
	rec, err := s.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestGateway_WorkerSuccess(t *testing.T) {
	s := newStack(t, 5*time.Second)

	resp, body := s.post(t, "/text-to-speech-clone", validatorToken, `{"text":"hello there","engine":"StyleTTS2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "data:audio/wav;base64,UklGRiQAAABXQVZF", body["audio_b64"])
	assert.Nil(t, body["error_message"])
	assert.EqualValues(t, 1, s.worker.calls.Load())

	sent := s.worker.body()
	assert.Equal(t, "hello there", sent["text"])
	assert.Equal(t, synapse.DefaultAlpha, sent["alpha"])
	assert.Equal(t, float64(synapse.DefaultDiffusionSteps), sent["diffusion_steps"])
	assert.Equal(t, "StyleTTS2", sent["engine"])

	rec := s.record(t, resp)
	assert.Equal(t, history.StateProjected, rec.State)
	assert.Equal(t, "validator-a", rec.Caller)
	assert.Equal(t, 10.0, rec.Priority)
	assert.Nil(t, rec.ErrorMessage)

	n, err := testutil.GatherAndCount(s.metrics.Registry(), "e2e_backend_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGateway_MockSkipsWorker(t *testing.T) {
	s := newStack(t, 5*time.Second)

	resp, body := s.post(t, "/text-to-speech-clone", guestToken, `{"is_mock":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, operation.MockAudio, body["audio_b64"])
	assert.Zero(t, s.worker.calls.Load())
}

func TestGateway_InvalidEngineNeverReachesWorker(t *testing.T) {
	s := newStack(t, 5*time.Second)

	for _, engine := range []string{"OpenVoice", "Bark"} {
		resp, body := s.post(t, "/text-to-speech-clone", validatorToken, `{"engine":"`+engine+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, engine)
		assert.Equal(t, dispatch.DetailInvalidModel, body["detail"])

		rec := s.record(t, resp)
		assert.Equal(t, history.StateInvalid, rec.State)
	}
	assert.Zero(t, s.worker.calls.Load())
}

func TestGateway_WorkerFailureBecomesErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{name: "http 500", status: http.StatusInternalServerError, reply: `{"error":"cuda out of memory"}`},
		{name: "missing output", status: http.StatusOK, reply: `{"error":"no speaker"}`},
		{name: "not a data uri", status: http.StatusOK, reply: `{"output":"https://cdn/x.wav"}`},
		{name: "image data uri", status: http.StatusOK, reply: `{"output":"data:image/png;base64,iVBORw0KGgo="}`},
		{name: "not json", status: http.StatusOK, reply: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, 5*time.Second)
			s.worker.respond(tt.status, tt.reply)

			resp, body := s.post(t, "/text-to-speech-clone", validatorToken, `{"text":"hi"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Nil(t, body["audio_b64"])
			assert.Equal(t, operation.GenerationFailed, body["error_message"])

			rec := s.record(t, resp)
			assert.Equal(t, history.StateProjected, rec.State)
			require.NotNil(t, rec.ErrorMessage)
			assert.Equal(t, operation.GenerationFailed, *rec.ErrorMessage)
		})
	}
}

func TestGateway_WorkerTimeout(t *testing.T) {
	s := newStack(t, 100*time.Millisecond)
	s.worker.mu.Lock()
	s.worker.delay = 2 * time.Second
	s.worker.mu.Unlock()

	start := time.Now()
	resp, body := s.post(t, "/text-to-speech-clone", validatorToken, `{"text":"slow"}`)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, operation.GenerationFailed, body["error_message"])
}

func TestGateway_BlacklistedCaller(t *testing.T) {
	s := newStack(t, 5*time.Second)

	resp, body := s.post(t, "/text-to-speech-clone", spamToken, `{"text":"hi"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, admission.ReasonDenied, body["detail"])
	assert.Zero(t, s.worker.calls.Load())

	rec := s.record(t, resp)
	assert.Equal(t, history.StateRejected, rec.State)
}

func TestGateway_AvailableTasks(t *testing.T) {
	s := newStack(t, 5*time.Second)

	req, err := http.NewRequest(http.MethodGet, s.url+"/available-tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+guestToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing synapse.AvailableTasksResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Equal(t, []string{"available_tasks", "tts_clone"}, listing.AvailableTasks)
	assert.Nil(t, listing.ErrorMessage)
	assert.Zero(t, s.worker.calls.Load())
}

func TestGateway_PublishesLifecycleEvents(t *testing.T) {
	s := newStack(t, 5*time.Second)
	sub := s.hub.Subscribe()
	defer sub.Close()

	resp, _ := s.post(t, "/text-to-speech-clone", validatorToken, `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(api.QueryIDHeader)

	want := []string{
		events.TypeQueryReceived,
		events.TypeQueryValidated,
		events.TypeQueryAdmitted,
		events.TypeQueryDispatched,
		events.TypeQueryCompleted,
		events.TypeQueryProjected,
	}
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < len(want) {
		select {
		case ev := <-sub.Events():
			if ev.Query.QueryID == id {
				got = append(got, ev.Type)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	assert.Equal(t, want, got)
}
