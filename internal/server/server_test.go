package server_test

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/handler"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/server"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
)

// startServer wires a full stack (pool, queue, handler, acceptor) on an
// ephemeral port and returns the server plus its base URL.
func startServer(t *testing.T, workers, queueCap int) (*server.Server, *metrics.Aggregator, string) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hello</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	agg := metrics.NewAggregator(workers)
	h := handler.New(handler.Options{
		StaticRoot: root,
		Cache:      cache.New(true),
		Sessions:   session.NewRegistry(),
		Metrics:    agg,
	})
	q := pool.NewQueue(queueCap)
	p := pool.New(workers, q, h.Handle)

	srv := server.New(server.Options{
		Addr:    "127.0.0.1:0",
		Queue:   q,
		Pool:    p,
		Metrics: agg,
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return srv, agg, "http://" + srv.Addr().String()
}

func TestServesConcurrentRequests(t *testing.T) {
	srv, agg, base := startServer(t, 4, 16)
	defer srv.Shutdown(2 * time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(base + "/")
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
				return
			}
			if !strings.Contains(string(body), "hello") {
				errs <- fmt.Errorf("unexpected body %q", body)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("request failed: %v", err)
	}

	if got := agg.Snapshot().TotalRequests; got != n {
		t.Fatalf("expected %d recorded requests, got %d", n, got)
	}
}

func TestSmallPoolServesBurstFromCache(t *testing.T) {
	srv, agg, base := startServer(t, 2, 1)
	defer srv.Shutdown(2 * time.Second)

	get := func() error {
		resp, err := http.Get(base + "/index.html")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}

	// First request populates the cache, the burst rides on it.
	if err := get(); err != nil {
		t.Fatalf("warm request failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := get(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("burst request failed: %v", err)
	}

	snap := agg.Snapshot()
	if snap.TotalRequests != 5 {
		t.Fatalf("expected 5 requests, got %d", snap.TotalRequests)
	}
	if snap.StatusCodes["200"] != 5 {
		t.Fatalf("expected five 200s, got %d", snap.StatusCodes["200"])
	}
	if snap.CacheMisses != 1 || snap.CacheHits != 4 {
		t.Fatalf("expected 1 miss / 4 hits, got %d / %d", snap.CacheMisses, snap.CacheHits)
	}
}

func TestShutdownDrainsInFlightWork(t *testing.T) {
	srv, agg, base := startServer(t, 2, 8)

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(base + "/")
			if err != nil {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if err := srv.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := agg.Snapshot().TotalRequests; got != n {
		t.Fatalf("expected %d requests drained, got %d", n, got)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv, _, _ := startServer(t, 1, 4)
	if err := srv.Shutdown(time.Second); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := srv.Shutdown(time.Second); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestStartFailsOnBusyPort(t *testing.T) {
	srv, _, _ := startServer(t, 1, 4)
	defer srv.Shutdown(time.Second)

	q := pool.NewQueue(4)
	p := pool.New(1, q, func(pool.Task) {})
	dup := server.New(server.Options{
		Addr:    srv.Addr().String(),
		Queue:   q,
		Pool:    p,
		Metrics: metrics.NewAggregator(1),
	})
	if err := dup.Start(); err == nil {
		dup.Shutdown(time.Second)
		t.Fatal("expected bind error on a busy port")
	}
}
