package handler_test

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/handler"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
)

type fixture struct {
	handler  *handler.Handler
	cache    *cache.Cache
	sessions *session.Registry
	metrics  *metrics.Aggregator
}

func newFixture(t *testing.T, opts handler.Options) *fixture {
	t.Helper()

	if opts.StaticRoot == "" {
		root := t.TempDir()
		writeFile(t, root, "index.html", "<h1>home</h1>")
		writeFile(t, root, "about.html", "<h1>about</h1>")
		opts.StaticRoot = root
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(true)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAggregator(1)
	}

	return &fixture{
		handler:  handler.New(opts),
		cache:    opts.Cache,
		sessions: opts.Sessions,
		metrics:  opts.Metrics,
	}
}

func writeFile(t *testing.T, root, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// roundTrip sends one raw request through the handler over a real TCP pair
// and returns the full response.
func (f *fixture) roundTrip(t *testing.T, request string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.handler.Handle(pool.Task{Conn: conn, AcceptedAt: time.Now()})
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if request != "" {
		if _, err := client.Write([]byte(request)); err != nil {
			t.Fatalf("write request: %v", err)
		}
	} else {
		// Simulate a client that connects and immediately goes away.
		client.Close()
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, _ := io.ReadAll(client)
	<-done
	return string(resp)
}

func get(path string) string {
	return "GET " + path + " HTTP/1.1\r\nHost: test\r\nUser-Agent: Mozilla/5.0 (Windows NT 10.0)\r\n\r\n"
}

func TestServesStaticFile(t *testing.T) {
	f := newFixture(t, handler.Options{})

	resp := f.roundTrip(t, get("/about.html"))
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("expected 200, got %q", resp)
	}
	if !strings.Contains(resp, "<h1>about</h1>") {
		t.Fatalf("expected body in response, got %q", resp)
	}
	if !strings.Contains(resp, "Content-Type: text/html") {
		t.Fatalf("expected html content type, got %q", resp)
	}
	if !strings.Contains(resp, "Connection: close") {
		t.Fatalf("expected Connection: close, got %q", resp)
	}
}

func TestRootMapsToIndex(t *testing.T) {
	f := newFixture(t, handler.Options{})

	resp := f.roundTrip(t, get("/"))
	if !strings.Contains(resp, "<h1>home</h1>") {
		t.Fatalf("expected index body for /, got %q", resp)
	}
}

func TestCacheMissThenHit(t *testing.T) {
	f := newFixture(t, handler.Options{})

	first := f.roundTrip(t, get("/about.html"))
	if !strings.Contains(first, "X-Cache: MISS") {
		t.Fatalf("expected MISS on first request, got %q", first)
	}
	second := f.roundTrip(t, get("/about.html"))
	if !strings.Contains(second, "X-Cache: HIT") {
		t.Fatalf("expected HIT on second request, got %q", second)
	}

	snap := f.metrics.Snapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %d / %d", snap.CacheHits, snap.CacheMisses)
	}
}

func TestSetsSessionCookie(t *testing.T) {
	f := newFixture(t, handler.Options{})

	resp := f.roundTrip(t, get("/"))
	if !strings.Contains(resp, "Set-Cookie: SESSION_ID=") {
		t.Fatalf("expected session cookie, got %q", resp)
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", f.sessions.Len())
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, handler.Options{})

	resp := f.roundTrip(t, get("/missing.html"))
	if !strings.HasPrefix(resp, "HTTP/1.1 404 Not Found\r\n") {
		t.Fatalf("expected 404, got %q", resp)
	}
	if got := f.metrics.Snapshot().StatusCodes["404"]; got != 1 {
		t.Fatalf("expected one 404 recorded, got %d", got)
	}
}

func TestTraversalIsContained(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "inside")
	parent := filepath.Dir(root)
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("outside"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	f := newFixture(t, handler.Options{StaticRoot: root})

	resp := f.roundTrip(t, get("/../secret.txt"))
	if strings.Contains(resp, "outside") {
		t.Fatalf("traversal escaped the static root: %q", resp)
	}
	if !strings.HasPrefix(resp, "HTTP/1.1 404") {
		t.Fatalf("expected 404 for traversal, got %q", resp)
	}
}

func TestMalformedRequestLine(t *testing.T) {
	f := newFixture(t, handler.Options{})

	resp := f.roundTrip(t, "NONSENSE\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("expected 400, got %q", resp)
	}
	if got := f.metrics.Snapshot().StatusCodes["400"]; got != 1 {
		t.Fatalf("expected one 400 recorded, got %d", got)
	}
}

func TestEmptyConnectionIsSilent(t *testing.T) {
	f := newFixture(t, handler.Options{})

	f.roundTrip(t, "")
	if got := f.metrics.Snapshot().TotalRequests; got != 0 {
		t.Fatalf("expected nothing recorded for an empty read, got %d", got)
	}
}

func TestPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t, handler.Options{
		Device: func(string) string { panic("boom") },
	})

	resp := f.roundTrip(t, get("/"))
	if !strings.HasPrefix(resp, "HTTP/1.1 500 Internal Server Error\r\n") {
		t.Fatalf("expected 500 from contained panic, got %q", resp)
	}
	if got := f.metrics.Snapshot().StatusCodes["500"]; got != 1 {
		t.Fatalf("expected one 500 recorded, got %d", got)
	}
}

func TestEveryRequestRecordedExactlyOnce(t *testing.T) {
	f := newFixture(t, handler.Options{})

	f.roundTrip(t, get("/"))
	f.roundTrip(t, get("/missing.html"))
	f.roundTrip(t, "BAD\r\n\r\n")

	snap := f.metrics.Snapshot()
	if snap.TotalRequests != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", snap.TotalRequests)
	}
}
