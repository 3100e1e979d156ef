// Package handler implements the per-request serving path: parse one HTTP
// request from a raw connection, resolve it against the cache or static
// files, write the response, and record the outcome exactly once.
package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"net/textproto"
	"os"
	gopath "path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/tracing"
)

const (
	defaultReadTimeout = 10 * time.Second

	bodyBadRequest  = "Bad Request"
	bodyNotFound    = "<h1>404 - Not Found</h1>"
	bodyReadError   = "<h1>500 - File read error</h1>"
	bodyServerError = "<h1>500 - Internal Server Error</h1>"
)

// Options configure a Handler. Cache, Sessions, and Metrics are required;
// the classifier functions default to the simulated geo/device classifiers
// when nil.
type Options struct {
	StaticRoot      string
	Cache           *cache.Cache
	Sessions        *session.Registry
	Metrics         *metrics.Aggregator
	Country         func(ip string) string
	Device          func(userAgent string) string
	ReadTimeout     time.Duration
	SimulateLatency bool
	Tracer          trace.Tracer
	Logger          *slog.Logger
}

// Handler serves one request per accepted connection. It is stateless
// across invocations and safe for concurrent use by all workers.
type Handler struct {
	root     string
	cache    *cache.Cache
	sessions *session.Registry
	metrics  *metrics.Aggregator
	country  func(string) string
	device   func(string) string
	timeout  time.Duration
	simulate bool
	tracer   trace.Tracer
	log      *slog.Logger
}

// New builds a Handler from opts, filling in defaults.
func New(opts Options) *Handler {
	h := &Handler{
		root:     opts.StaticRoot,
		cache:    opts.Cache,
		sessions: opts.Sessions,
		metrics:  opts.Metrics,
		country:  opts.Country,
		device:   opts.Device,
		timeout:  opts.ReadTimeout,
		simulate: opts.SimulateLatency,
		tracer:   opts.Tracer,
		log:      opts.Logger,
	}
	if h.country == nil {
		h.country = CountryFromIP
	}
	if h.device == nil {
		h.device = DeviceFromUserAgent
	}
	if h.timeout <= 0 {
		h.timeout = defaultReadTimeout
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("mtws")
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

type response struct {
	status      int
	body        []byte
	contentType string
	sessionID   string
	cacheState  string
}

// Handle processes one task end to end. The connection is always closed,
// and the outcome is recorded into the metrics aggregator exactly once on
// every exit path; the single exception is a connection that yields no
// bytes at all, which is closed silently. A panic anywhere in the path is
// contained to this task: it is converted to a 500 and never propagates
// to the worker.
func (h *Handler) Handle(task pool.Task) {
	conn := task.Conn
	start := task.AcceptedAt
	if start.IsZero() {
		start = time.Now()
	}

	ip := clientIP(conn.RemoteAddr())
	reqPath := "/"
	device := "unknown"
	sessionID := ""
	recorded := false

	record := func(status int, cacheHit, cacheMiss bool) {
		if recorded {
			return
		}
		recorded = true
		h.metrics.Record(metrics.Outcome{
			Status:    status,
			Elapsed:   time.Since(start),
			CacheHit:  cacheHit,
			CacheMiss: cacheMiss,
			IP:        ip,
			Path:      reqPath,
			Country:   h.country(ip),
			Device:    device,
			At:        time.Now(),
		})
	}

	h.metrics.ConnOpened()
	defer h.metrics.ConnClosed()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("request panic contained", "path", reqPath, "ip", ip, "panic", fmt.Sprint(r))
			h.write(conn, response{
				status:      http.StatusInternalServerError,
				body:        []byte(bodyServerError),
				contentType: "text/html",
				sessionID:   sessionID,
			})
			record(http.StatusInternalServerError, false, false)
		}
	}()

	_, span := tracing.StartServerSpan(context.Background(), h.tracer, ip)
	defer func() {
		tracing.EndSpan(span, nil, tracing.PathAttr(reqPath))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.timeout))
	tp := textproto.NewReader(bufio.NewReader(conn))

	line, err := tp.ReadLine()
	if err != nil {
		// Nothing was requested; close without recording.
		return
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		h.write(conn, response{
			status:      http.StatusBadRequest,
			body:        []byte(bodyBadRequest),
			contentType: "text/plain",
		})
		record(http.StatusBadRequest, false, false)
		return
	}

	reqPath = fields[1]
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	headers, err := tp.ReadMIMEHeader()
	if err != nil && len(headers) == 0 {
		h.write(conn, response{
			status:      http.StatusBadRequest,
			body:        []byte(bodyBadRequest),
			contentType: "text/plain",
		})
		record(http.StatusBadRequest, false, false)
		return
	}
	device = h.device(headers.Get("User-Agent"))

	if h.simulate {
		sleepFor(reqPath)
	}

	sessionID = h.sessions.Ensure(ip)
	h.metrics.SetSessionCount(h.sessions.Len())

	body, status, contentType, hit := h.resolve(reqPath)

	resp := response{
		status:      status,
		body:        body,
		contentType: contentType,
		sessionID:   sessionID,
	}
	if status == http.StatusOK {
		if hit {
			resp.cacheState = "HIT"
		} else {
			resp.cacheState = "MISS"
		}
	}
	if err := h.write(conn, resp); err != nil {
		h.log.Debug("response write failed", "path", reqPath, "ip", ip, "error", err)
	}

	h.sessions.Touch(ip, reqPath, device)
	record(status, hit, !hit)
}

// resolve serves path from the cache when possible, falling back to the
// static root with read-through population. The miss cases classify as
// 404 (no such file, directory, or a traversal attempt) or 500 (file
// exists but could not be read).
func (h *Handler) resolve(path string) (body []byte, status int, contentType string, hit bool) {
	if e, ok := h.cache.Get(path); ok {
		return e.Body, http.StatusOK, e.ContentType, true
	}

	loc := filepath.Join(h.root, filepath.FromSlash(gopath.Clean("/"+path)))
	info, err := os.Stat(loc)
	if err != nil || info.IsDir() {
		return []byte(bodyNotFound), http.StatusNotFound, "text/html", false
	}

	data, err := os.ReadFile(loc)
	if err != nil {
		return []byte(bodyReadError), http.StatusInternalServerError, "text/html", false
	}

	contentType = mime.TypeByExtension(filepath.Ext(loc))
	if contentType == "" {
		contentType = "text/html"
	}
	h.cache.Put(path, data, contentType)
	return data, http.StatusOK, contentType, false
}

// write emits a full HTTP/1.1 response. The server has no keep-alive
// surface, so every response carries Connection: close.
func (h *Handler) write(w io.Writer, r response) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", r.status, http.StatusText(r.status))
	fmt.Fprintf(bw, "Content-Type: %s\r\n", r.contentType)
	fmt.Fprintf(bw, "Content-Length: %d\r\n", len(r.body))
	if r.sessionID != "" {
		fmt.Fprintf(bw, "Set-Cookie: SESSION_ID=%s; Path=/; HttpOnly\r\n", r.sessionID)
	}
	if r.cacheState != "" {
		fmt.Fprintf(bw, "X-Cache: %s\r\n", r.cacheState)
	}
	fmt.Fprintf(bw, "Connection: close\r\n\r\n")
	if _, err := bw.Write(r.body); err != nil {
		return err
	}
	return bw.Flush()
}

// sleepFor reproduces the demo latency profile: /slow takes 600-1200ms,
// everything else 20-180ms.
func sleepFor(path string) {
	if path == "/slow" {
		time.Sleep(time.Duration(600+rand.Intn(600)) * time.Millisecond)
		return
	}
	time.Sleep(time.Duration(20+rand.Intn(160)) * time.Millisecond)
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
