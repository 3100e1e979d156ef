package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
)

func newTestServer(interval time.Duration) (*api.Server, *metrics.Aggregator, *cache.Cache, *session.Registry) {
	agg := metrics.NewAggregator(4)
	c := cache.New(true)
	agg.SetCacheEnabled(true)
	reg := session.NewRegistry()
	srv := api.New(api.Options{
		Metrics:        agg,
		Sessions:       reg,
		Cache:          c,
		StreamInterval: interval,
	})
	return srv, agg, c, reg
}

func seed(agg *metrics.Aggregator, reg *session.Registry, n int) {
	for i := 0; i < n; i++ {
		agg.Record(metrics.Outcome{
			Status:  200,
			Elapsed: 5 * time.Millisecond,
			IP:      "10.0.0.1",
			Path:    "/index.html",
			Country: "United States",
			Device:  "Desktop",
			At:      time.Now(),
		})
		reg.Ensure("10.0.0.1")
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestMetricsPayloadShape(t *testing.T) {
	srv, agg, _, reg := newTestServer(0)
	seed(agg, reg, 3)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}

	var p api.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.TotalRequests != 3 {
		t.Fatalf("expected 3 total requests, got %d", p.TotalRequests)
	}
	if p.StatusCodes["200"] != 3 {
		t.Fatalf("expected 3 200s, got %d", p.StatusCodes["200"])
	}
	if len(p.SessionSummary) != 1 {
		t.Fatalf("expected one session summary, got %d", len(p.SessionSummary))
	}
	if !strings.Contains(rec.Body.String(), `"session_summary"`) {
		t.Fatal("expected session_summary key on the wire")
	}
}

func TestMetricsRejectsNonGet(t *testing.T) {
	srv, _, _, _ := newTestServer(0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSessionsLimit(t *testing.T) {
	srv, _, _, reg := newTestServer(0)
	reg.Ensure("10.0.0.1")
	reg.Ensure("10.0.0.2")
	reg.Ensure("10.0.0.3")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summaries []session.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
}

func TestSessionsRejectsBadLimit(t *testing.T) {
	srv, _, _, _ := newTestServer(0)
	for _, raw := range []string{"0", "-1", "abc"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit="+raw, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: expected 400, got %d", raw, rec.Code)
		}
	}
}

func TestCacheToggle(t *testing.T) {
	srv, agg, c, _ := newTestServer(0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/toggle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cache_enabled"] {
		t.Fatal("expected toggle to disable the cache")
	}
	if c.Enabled() {
		t.Fatal("cache should be disabled after toggle")
	}
	if agg.Snapshot().CacheEnabled {
		t.Fatal("aggregator gauge should track the toggle")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/toggle", nil))
	if !c.Enabled() {
		t.Fatal("second toggle should re-enable the cache")
	}
}

func TestCacheToggleIsPostOnly(t *testing.T) {
	srv, _, _, _ := newTestServer(0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/toggle", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStreamPushesFrames(t *testing.T) {
	srv, agg, _, reg := newTestServer(50 * time.Millisecond)
	seed(agg, reg, 2)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p api.Payload
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if p.TotalRequests != 2 {
		t.Fatalf("expected 2 total requests in frame, got %d", p.TotalRequests)
	}
}

func TestBuildPayloadCapsRecent(t *testing.T) {
	agg := metrics.NewAggregator(1)
	reg := session.NewRegistry()
	seed(agg, reg, 40)

	p := api.BuildPayload(agg, reg)
	if len(p.RecentRequests) > 20 {
		t.Fatalf("expected recent requests capped at 20, got %d", len(p.RecentRequests))
	}
}
