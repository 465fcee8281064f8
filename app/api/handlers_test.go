package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alg-bug-engineer/Neural-Flow/app/database"
	"github.com/alg-bug-engineer/Neural-Flow/app/expander"
	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
	"github.com/alg-bug-engineer/Neural-Flow/app/rules"
	"github.com/alg-bug-engineer/Neural-Flow/app/scheduler"
)

const apiRules = `global:
  timezone: "UTC"
  memory_retention_days: 30
sources:
  - id: "src_a"
    url: "file:///tmp/a.xml"
    fetch_interval: "30m"
platforms:
  twitter:
    enabled: true
  wechat_blog:
    enabled: true
`

type mockScheduler struct {
	runOnceSource string
	runOnceCount  int
	runOnceErr    error
	reloadChanged bool
	reloadErr     error
	status        map[string]scheduler.RunStats
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) EnqueueTask(task scheduler.TaskInterface) error { return nil }

func (m *mockScheduler) RunOnce(sourceID string) (int, error) {
	m.runOnceSource = sourceID
	if m.runOnceErr != nil {
		return 0, m.runOnceErr
	}
	return m.runOnceCount, nil
}

func (m *mockScheduler) Reload() (bool, error) {
	return m.reloadChanged, m.reloadErr
}

func (m *mockScheduler) Status() map[string]scheduler.RunStats {
	return m.status
}

type mockExpander struct {
	lastPayload map[string]any
	lastForce   bool
	result      expander.Result
}

func (m *mockExpander) HandleEvent(ctx context.Context, payload map[string]any, force bool) expander.Result {
	m.lastPayload = payload
	m.lastForce = force
	return m.result
}

type mockDashboard struct {
	lastFilter database.DashboardFilter
	entries    []database.DashboardEntry
	err        error
}

func (m *mockDashboard) ListDashboard(filter database.DashboardFilter) ([]database.DashboardEntry, error) {
	m.lastFilter = filter
	return m.entries, m.err
}

func (m *mockDashboard) CountByType() (map[string]int, error) {
	return map[string]int{"topic": 3, "draft": 1}, nil
}

type mockLogs struct {
	lastFilter database.LogFilter
	records    []database.LogRecord
}

func (m *mockLogs) QueryLogs(filter database.LogFilter) ([]database.LogRecord, error) {
	m.lastFilter = filter
	return m.records, nil
}

type testEnv struct {
	router    *gin.Engine
	scheduler *mockScheduler
	expander  *mockExpander
	dashboard *mockDashboard
	logs      *mockLogs
}

func newTestEnv(t *testing.T, apiAccessKey string) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(apiRules), 0644); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}
	cache := rules.NewCache(path)
	if err := cache.Run(); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	env := &testEnv{
		scheduler: &mockScheduler{},
		expander:  &mockExpander{},
		dashboard: &mockDashboard{},
		logs:      &mockLogs{},
	}
	handler := NewHandler(env.scheduler, env.expander, env.dashboard, env.logs, cache)
	env.router = NewServer(handler, apiAccessKey, "")
	return env
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, "")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("unexpected status: %v", body["status"])
	}
	if body["sources"] != float64(1) {
		t.Errorf("expected 1 source, got %v", body["sources"])
	}
	records, ok := body["records"].(map[string]interface{})
	if !ok || records["topic"] != float64(3) {
		t.Errorf("unexpected record counts: %v", body["records"])
	}
}

func TestGetStatusIncludesRunStats(t *testing.T) {
	env := newTestEnv(t, "")
	ended := time.Now().UTC()
	env.scheduler.status = map[string]scheduler.RunStats{
		"src_a": {SourceID: "src_a", Scanned: 5, Processed: 2, EndedAt: &ended},
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["rules_fingerprint"] == "" {
		t.Error("expected a rules fingerprint")
	}

	platforms, ok := body["enabled_platforms"].([]interface{})
	if !ok || len(platforms) != 2 || platforms[0] != "twitter" {
		t.Errorf("unexpected platforms: %v", body["enabled_platforms"])
	}

	sources := body["sources"].([]interface{})
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	source := sources[0].(map[string]interface{})
	lastRun, ok := source["last_run"].(map[string]interface{})
	if !ok || lastRun["scanned"] != float64(5) {
		t.Errorf("unexpected last_run: %v", source["last_run"])
	}
}

func TestPostRunOnce(t *testing.T) {
	env := newTestEnv(t, "")
	env.scheduler.runOnceCount = 2

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("POST", "/run_once?source_id=src_a", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.scheduler.runOnceSource != "src_a" {
		t.Errorf("expected src_a, got %q", env.scheduler.runOnceSource)
	}
	if body := decodeBody(t, w); body["enqueued"] != float64(2) {
		t.Errorf("unexpected enqueued count: %v", body["enqueued"])
	}
}

func TestPostRunOnceUnknownSource(t *testing.T) {
	env := newTestEnv(t, "")
	env.scheduler.runOnceErr = fmt.Errorf("source unknown not found")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("POST", "/run_once?source_id=unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPostReload(t *testing.T) {
	env := newTestEnv(t, "")
	env.scheduler.reloadChanged = true

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("POST", "/reload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["changed"] != true {
		t.Errorf("expected changed=true, got %v", body["changed"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "secret")

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"api key header", "X-API-Key", "secret", http.StatusOK},
		{"bearer token", "Authorization", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/reload", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAuthDoesNotGateReadEndpoints(t *testing.T) {
	env := newTestEnv(t, "secret")

	for _, path := range []string{"/health", "/status", "/dashboard", "/logs"} {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without key, got %d", path, w.Code)
		}
	}
}

func TestPostCallback(t *testing.T) {
	env := newTestEnv(t, "")
	env.expander.result = expander.Result{
		Status:    "ok",
		Generated: 1,
		Results: []expander.PlatformResult{
			{Platform: "twitter", TraceID: "t1-twitter", Status: "ok"},
		},
	}

	payload := `{"event":{"record":{"fields":{"状态":"已确认"}}}}`
	req := httptest.NewRequest("POST", "/callback?force=true", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !env.expander.lastForce {
		t.Error("expected force flag to be passed through")
	}
	if env.expander.lastPayload["event"] == nil {
		t.Error("expected payload to reach the expander")
	}
	body := decodeBody(t, w)
	if body["generated"] != float64(1) {
		t.Errorf("unexpected generated count: %v", body["generated"])
	}
}

func TestPostCallbackHandshake(t *testing.T) {
	env := newTestEnv(t, "")
	env.expander.result = expander.Result{Status: "handshake", Challenge: "abc123"}

	payload := `{"type":"url_verification","challenge":"abc123"}`
	req := httptest.NewRequest("POST", "/callback", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["challenge"] != "abc123" {
		t.Errorf("expected echoed challenge, got %v", body)
	}
	if len(body) != 1 {
		t.Errorf("handshake reply must carry only the challenge, got %v", body)
	}
}

func TestPostCallbackInvalidJSON(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest("POST", "/callback", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetDashboardFilters(t *testing.T) {
	env := newTestEnv(t, "")
	env.dashboard.entries = []database.DashboardEntry{
		{ID: 1, RecordType: "draft", TraceID: "t1-twitter", Platform: "twitter",
			Title: "发布", Status: "draft_ready", CreatedAt: time.Now().UTC()},
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET",
		"/dashboard?record_type=draft&trace_id=t1-twitter&limit=10", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.dashboard.lastFilter.RecordType != "draft" ||
		env.dashboard.lastFilter.TraceID != "t1-twitter" ||
		env.dashboard.lastFilter.Limit != 10 {
		t.Errorf("unexpected filter: %+v", env.dashboard.lastFilter)
	}
	body := decodeBody(t, w)
	entries := body["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["status"] != "draft_ready" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestGetLogsFilters(t *testing.T) {
	env := newTestEnv(t, "")
	env.logs.records = []database.LogRecord{
		{ID: 7, Component: "scheduler", Level: "INFO", Message: "Task completed",
			TraceID: "deadbeef", CreatedAt: time.Now().UTC()},
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET",
		"/logs?trace_id=deadbeef&component=scheduler&level=INFO&keyword=completed", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	filter := env.logs.lastFilter
	if filter.TraceID != "deadbeef" || filter.Component != "scheduler" ||
		filter.Level != "INFO" || filter.Keyword != "completed" || filter.Limit != 100 {
		t.Errorf("unexpected filter: %+v", filter)
	}
	body := decodeBody(t, w)
	logs := body["logs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(logs))
	}
}

func TestTraceHeaderEcho(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(obs.TraceHeader, "req-42")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get(obs.TraceHeader); got != "req-42" {
		t.Errorf("expected echoed trace id, got %q", got)
	}

	// Without an inbound id one is minted.
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Header().Get(obs.TraceHeader) == "" {
		t.Error("expected a generated trace id")
	}
}

type captureSink struct {
	mu      sync.Mutex
	entries []obs.LogEntry
}

func (s *captureSink) WriteLog(entry obs.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func TestHandlerErrorsCarryTraceID(t *testing.T) {
	sink := &captureSink{}
	obs.Setup(sink, false)
	t.Cleanup(func() { obs.Setup(nil, false) })

	env := newTestEnv(t, "")
	env.scheduler.runOnceErr = fmt.Errorf("source unknown not found")

	req := httptest.NewRequest("POST", "/run_once?source_id=unknown", nil)
	req.Header.Set(obs.TraceHeader, "req-trace-9")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, entry := range sink.entries {
		if entry.Message == "Manual scan failed to enqueue" {
			if entry.TraceID != "req-trace-9" {
				t.Errorf("expected the request trace id on the error record, got %q", entry.TraceID)
			}
			return
		}
	}
	t.Error("expected the handler error to reach the log sink")
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw      string
		fallback int
		expected int
	}{
		{"", 50, 50},
		{"10", 50, 10},
		{"0", 50, 50},
		{"-3", 50, 50},
		{"junk", 50, 50},
		{"9999", 50, 500},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.raw, tt.fallback); got != tt.expected {
			t.Errorf("parseLimit(%q): expected %d, got %d", tt.raw, tt.expected, got)
		}
	}
}
