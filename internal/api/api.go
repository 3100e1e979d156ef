// Package api exposes the ops surface on its own net/http listener: a
// health probe, REST metrics and session summaries, the cache toggle, and a
// WebSocket live feed. It only reads from the core through snapshots, so it
// never contends with the serving path beyond the aggregator lock.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/logging"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
)

// recentLimit caps recent_requests and session_summary on the REST surface.
const recentLimit = 20

// Payload is the /api/metrics response body: the full metrics snapshot plus
// the newest session summaries.
type Payload struct {
	metrics.Snapshot
	SessionSummary []session.Summary `json:"session_summary"`
}

// Options configure the ops server.
type Options struct {
	Addr           string
	Metrics        *metrics.Aggregator
	Sessions       *session.Registry
	Cache          *cache.Cache
	StreamInterval time.Duration
	Logger         *slog.Logger
}

// Server is the ops/API HTTP server.
type Server struct {
	addr     string
	metrics  *metrics.Aggregator
	sessions *session.Registry
	cache    *cache.Cache
	interval time.Duration
	log      *slog.Logger

	httpSrv  *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader
}

// New builds the ops server; call Start to bind it.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	interval := opts.StreamInterval
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		addr:     opts.Addr,
		metrics:  opts.Metrics,
		sessions: opts.Sessions,
		cache:    opts.Cache,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is a local ops surface; any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/cache/toggle", s.handleCacheToggle)
	mux.HandleFunc("/api/stream", s.handleStream)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds the ops listener and serves in a background goroutine. A bind
// failure is returned synchronously; later Serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind ops %s: %w", s.addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("ops server failed", "error", err)
		}
	}()
	s.log.Info("ops server listening", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound ops address; nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops the ops server, waiting up to ctx for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// BuildPayload assembles the wire payload from the live aggregator and
// session registry. The snapshot store persists the same document.
func BuildPayload(m *metrics.Aggregator, sessions *session.Registry) Payload {
	return Payload{
		Snapshot:       m.Snapshot().LimitRecent(recentLimit),
		SessionSummary: sessions.Summaries(recentLimit),
	}
}

func (s *Server) payload() Payload {
	return BuildPayload(s.metrics, s.sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.payload())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.sessions.Summaries(limit))
}

func (s *Server) handleCacheToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	enabled := s.cache.Toggle()
	s.metrics.SetCacheEnabled(enabled)
	s.log.Info("cache toggled", "enabled", enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"cache_enabled": enabled})
}

// handleStream upgrades to WebSocket and pushes a snapshot frame every
// interval until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads are only consumed to detect the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.payload()); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
