package management

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"privacy-guardian/internal/config"
	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/router"
	"privacy-guardian/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		BackendURL:     "http://127.0.0.1:8000",
		ManagementPort: 8181,
		BindAddress:    "127.0.0.1",
		StoreBackend:   store.BackendMemory,
	}
}

// fakeCaller answers router calls from a function.
type fakeCaller func(ctx context.Context, req router.Request) (router.Response, error)

func (f fakeCaller) Call(ctx context.Context, req router.Request) (router.Response, error) {
	return f(ctx, req)
}

func onlineCaller(_ context.Context, req router.Request) (router.Response, error) {
	switch r := req.(type) {
	case router.PingRequest:
		return router.PingResponse{PingResult: pii.PingResult{Online: true, Message: "Hello World"}}, nil
	case router.DetectRequest:
		return router.DetectResponse{DetectionResult: pii.Fallback(r.Text)}, nil
	}
	return router.Empty(req.Action()), nil
}

func newTestServer(token string, caller router.Caller) (*Server, *store.Store) {
	cfg := testConfig()
	cfg.ManagementToken = token
	st := store.New(store.NewMemory(), nil)
	if caller == nil {
		caller = fakeCaller(onlineCaller)
	}
	return New(cfg, st, caller, metrics.New(), nil), st
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestStatus_OK(t *testing.T) {
	srv, _ := newTestServer("", nil)
	w := do(t, srv, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status     string `json:"status"`
		Monitoring bool   `json:"isMonitoringEnabled"`
		Backend    struct {
			URL     string `json:"url"`
			Online  bool   `json:"online"`
			Message string `json:"message"`
		} `json:"backend"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != "running" || !resp.Monitoring {
		t.Errorf("status = %+v", resp)
	}
	if !resp.Backend.Online || resp.Backend.Message != "Hello World" || resp.Backend.URL != "http://127.0.0.1:8000" {
		t.Errorf("backend = %+v", resp.Backend)
	}
}

func TestStatus_BackendDown(t *testing.T) {
	down := fakeCaller(func(_ context.Context, req router.Request) (router.Response, error) {
		return router.Empty(req.Action()), router.ErrTimeout
	})
	srv, _ := newTestServer("", down)
	w := do(t, srv, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"online":false`) || !strings.Contains(w.Body.String(), "timed out") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuth(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "", http.StatusOK},
		{"valid token", "secret123", "Bearer secret123", http.StatusOK},
		{"wrong token", "secret123", "Bearer wrong", http.StatusUnauthorized},
		{"missing token", "secret123", "", http.StatusUnauthorized},
		{"wrong scheme", "secret123", "Basic secret123", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv, _ := newTestServer(c.token, nil)
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != c.want {
				t.Errorf("got %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestReport_NotFoundThenStored(t *testing.T) {
	srv, st := newTestServer("", nil)
	if w := do(t, srv, http.MethodGet, "/report", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any scan, got %d", w.Code)
	}

	rep := pii.ScanReport{
		ID:                   "r1",
		Timestamp:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceURL:            "https://chat.openai.com/c/1",
		TotalMessagesScanned: 3,
		TotalLeaksFound:      1,
		Findings:             []pii.RedactionSpan{{Original: "a@b.com", Replacement: "[EMAIL]"}},
	}
	if err := st.SaveReport(context.Background(), rep); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, http.MethodGet, "/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got pii.ScanReport
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "r1" || got.TotalLeaksFound != 1 || len(got.Findings) != 1 {
		t.Errorf("report = %+v", got)
	}

	if w := do(t, srv, http.MethodPost, "/report", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /report: expected 405, got %d", w.Code)
	}
}

func TestMonitoring_Toggle(t *testing.T) {
	srv, st := newTestServer("", nil)

	w := do(t, srv, http.MethodPost, "/monitoring", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	on, err := st.Flag(context.Background(), store.KeyMonitoringEnabled, true)
	if err != nil || on {
		t.Errorf("monitoring flag = %v, %v; want false", on, err)
	}

	w = do(t, srv, http.MethodGet, "/monitoring", "")
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Errorf("GET /monitoring = %s", w.Body.String())
	}
}

func TestMonitoring_BadRequests(t *testing.T) {
	srv, _ := newTestServer("", nil)
	cases := []struct {
		name, method, body string
		want               int
	}{
		{"missing field", http.MethodPost, `{}`, http.StatusBadRequest},
		{"not json", http.MethodPost, `nope`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"enabled":true,"pad":"` + strings.Repeat("x", 2048) + `"}`, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if w := do(t, srv, c.method, "/monitoring", c.body); w.Code != c.want {
				t.Errorf("got %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestPreferences_PartialUpdate(t *testing.T) {
	srv, _ := newTestServer("", nil)

	w := do(t, srv, http.MethodGet, "/preferences", "")
	var p store.Preferences
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if !p.MonitoringEnabled || !p.AutoScan || !p.NotificationsEnabled {
		t.Errorf("defaults = %+v, want all true", p)
	}

	w = do(t, srv, http.MethodPost, "/preferences", `{"autoScan":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	p = store.Preferences{}
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if !p.MonitoringEnabled || p.AutoScan || !p.NotificationsEnabled {
		t.Errorf("after update = %+v, want only autoScan off", p)
	}
}

func TestMessage_Detect(t *testing.T) {
	srv, _ := newTestServer("", nil)
	w := do(t, srv, http.MethodPost, "/message", `{"action":"detect","text":"mail a@b.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"action":"detect"`) || !strings.Contains(body, `"hasPII":true`) {
		t.Errorf("body = %s", body)
	}
}

func TestMessage_LegacyAlias(t *testing.T) {
	srv, _ := newTestServer("", nil)
	w := do(t, srv, http.MethodPost, "/message", `{"action":"checkPII","text":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"hasPII":false`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMessage_Timeout(t *testing.T) {
	slow := fakeCaller(func(_ context.Context, req router.Request) (router.Response, error) {
		return router.Empty(req.Action()), router.ErrTimeout
	})
	srv, _ := newTestServer("", slow)
	w := do(t, srv, http.MethodPost, "/message", `{"action":"scanHistory","messages":[]}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"action":"scanHistory"`) || !strings.Contains(body, `"error"`) {
		t.Errorf("timeout must still carry the empty response: %s", body)
	}
}

func TestMessage_Rejects(t *testing.T) {
	srv, _ := newTestServer("", nil)
	if w := do(t, srv, http.MethodPost, "/message", `{"action":"explode"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown action: got %d", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/message", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/message", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer("", nil)
	srv.metrics.RecordOutcome("clean")
	w := do(t, srv, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "clean") {
		t.Errorf("metrics body = %s", w.Body.String())
	}

	srv.metrics = nil
	if w := do(t, srv, http.MethodGet, "/metrics", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without metrics, got %d", w.Code)
	}
}

func TestWriteJSON_LogsEncodeError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("management", "info")
	log.SetOutput(&buf)
	srv := New(testConfig(), store.New(store.NewMemory(), nil), fakeCaller(onlineCaller), metrics.New(), log)

	w := httptest.NewRecorder()
	srv.writeJSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	if !strings.Contains(buf.String(), "encode error") {
		t.Errorf("log = %q, want encode error", buf.String())
	}
}
