package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/person-intel/internal/collect"
	"github.com/jonathan/person-intel/internal/llm"
	"github.com/jonathan/person-intel/internal/types"
	"github.com/jonathan/person-intel/internal/workflow"
)

type stubLLM struct{}

func (stubLLM) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	return "Narrative summary.", nil
}

func (stubLLM) GenerateJSON(context.Context, string, llm.ModelTier) (string, error) {
	return `{"name":"John Smith","search_terms":["John Smith"],"platforms":["twitter"]}`, nil
}

func (stubLLM) Close() error { return nil }

type stubCollector struct {
	outcome *collect.Outcome
	delay   time.Duration
}

func (s *stubCollector) Category() types.SourceCategory { return s.outcome.Category }

func (s *stubCollector) Collect(ctx context.Context, _ *types.SearchStrategy) *collect.Outcome {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.outcome
}

func pepCollector(delay time.Duration) collect.Collector {
	return &stubCollector{
		delay: delay,
		outcome: &collect.Outcome{
			Category: types.CategoryPEP,
			PEPRecords: []types.PEPRecord{{
				Source:    "ofac",
				Name:      "John Smith",
				Sanctions: []types.Sanction{{Name: "SDN"}},
			}},
			Checked:    []string{"pep_database:ofac"},
			Successful: []string{"pep_database:ofac"},
		},
	}
}

func newTestServer(t *testing.T, cfg Config, collectors ...collect.Collector) *Server {
	t.Helper()
	coordinator := workflow.NewCoordinator(stubLLM{}, collectors, nil, workflow.Config{
		StrategyTimeout:  time.Second,
		CollectTimeout:   time.Second,
		SynthesisTimeout: time.Second,
	})
	t.Cleanup(coordinator.Close)

	s := New(coordinator, cfg)
	s.pollInterval = 10 * time.Millisecond
	return s
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func startRun(t *testing.T, s *Server) string {
	t.Helper()
	w := postJSON(t, s.Handler(), "/search", `{"name":"John Smith"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RequestID)
	return resp.RequestID
}

func awaitCompleted(t *testing.T, s *Server, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		var snapshot workflow.Snapshot
		return json.Unmarshal(w.Body.Bytes(), &snapshot) == nil && snapshot.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSearchLifecycle(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(0))

	id := startRun(t, s)
	awaitCompleted(t, s, id)

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report types.PersonIntelligence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "John Smith", report.Name)
	assert.Equal(t, types.RiskCritical, report.RiskLevel)
	assert.Equal(t, "Narrative summary.", report.Summary)
}

func TestResultMarkdownFormat(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(0))

	id := startRun(t, s)
	awaitCompleted(t, s, id)

	req := httptest.NewRequest(http.MethodGet, "/result/"+id+"?format=markdown", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "# Intelligence Report: John Smith")
}

func TestResultBeforeFinishConflicts(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(5*time.Second))

	id := startRun(t, s)

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSearchRejectsInvalidBody(t *testing.T) {
	s := newTestServer(t, Config{})

	assert.Equal(t, http.StatusBadRequest, postJSON(t, s.Handler(), "/search", `{garbage`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, s.Handler(), "/search", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, s.Handler(), "/search", `{"name":"J"}`).Code)
}

func TestSearchIncludeFlags(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(0))

	w := postJSON(t, s.Handler(), "/search", `{"name":"John Smith","include_pep":false}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	awaitCompleted(t, s, resp.RequestID)

	req := httptest.NewRequest(http.MethodGet, "/result/"+resp.RequestID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report types.PersonIntelligence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Empty(t, report.PEPRecords)
	assert.Equal(t, types.RiskUnknown, report.RiskLevel)
}

func TestStatusUnknownRun(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/status/unknown", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelRun(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(5*time.Second))

	id := startRun(t, s)

	req := httptest.NewRequest(http.MethodDelete, "/search/"+id, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	awaitCompleted(t, s, id)

	req = httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	var snapshot workflow.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, workflow.StatusCancelled, snapshot.Status)
}

func TestCancelCompletedRunEchoesActualStatus(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(0))

	id := startRun(t, s)
	awaitCompleted(t, s, id)

	req := httptest.NewRequest(http.MethodDelete, "/search/"+id, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestResultOfCancelledRunConflicts(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(5*time.Second))

	id := startRun(t, s)

	req := httptest.NewRequest(http.MethodDelete, "/search/"+id, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	awaitCompleted(t, s, id)

	req = httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "without a report")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestClientRateLimit(t *testing.T) {
	s := newTestServer(t, Config{ClientRequestsPerMinute: 2})

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		lastCode = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestSearchStream(t *testing.T) {
	s := newTestServer(t, Config{}, pepCollector(0))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/search/stream", "application/json", strings.NewReader(`{"name":"John Smith"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	stream := string(body)
	assert.Contains(t, stream, "event: started")
	assert.Contains(t, stream, "event: progress")
	assert.Contains(t, stream, "event: result")
	assert.Contains(t, stream, "event: complete")
	assert.Contains(t, stream, `"status":"completed"`)
}
