package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
)

func record(a *metrics.Aggregator, status int, elapsed time.Duration) {
	a.Record(metrics.Outcome{
		Status:  status,
		Elapsed: elapsed,
		IP:      "10.0.0.1",
		Path:    "/index.html",
		Country: "US",
		Device:  "Desktop",
	})
}

func TestStatusCountersSumToTotal(t *testing.T) {
	a := metrics.NewAggregator(4)

	record(a, 200, 10*time.Millisecond)
	record(a, 200, 12*time.Millisecond)
	record(a, 404, 5*time.Millisecond)
	record(a, 500, 8*time.Millisecond)
	record(a, 400, 2*time.Millisecond)

	snap := a.Snapshot()
	if snap.TotalRequests != 5 {
		t.Fatalf("expected total 5, got %d", snap.TotalRequests)
	}
	var sum int64
	for _, n := range snap.StatusCodes {
		sum += n
	}
	if sum != snap.TotalRequests {
		t.Fatalf("status counters sum to %d, total is %d", sum, snap.TotalRequests)
	}
}

func TestSnapshotKnownCodesAlwaysPresent(t *testing.T) {
	snap := metrics.NewAggregator(1).Snapshot()
	for _, code := range []string{"200", "400", "404", "500"} {
		if _, ok := snap.StatusCodes[code]; !ok {
			t.Errorf("expected status bucket %s in empty snapshot", code)
		}
	}
}

func TestCacheCounters(t *testing.T) {
	a := metrics.NewAggregator(1)
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, CacheMiss: true})
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, CacheHit: true})
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, CacheHit: true})

	snap := a.Snapshot()
	if snap.CacheHits != 2 || snap.CacheMisses != 1 {
		t.Fatalf("expected 2 hits / 1 miss, got %d / %d", snap.CacheHits, snap.CacheMisses)
	}
}

func TestActiveClientsGaugeNeverNegative(t *testing.T) {
	a := metrics.NewAggregator(1)
	a.ConnOpened()
	a.ConnClosed()
	a.ConnClosed()

	if got := a.Snapshot().ActiveClients; got != 0 {
		t.Fatalf("expected active clients 0, got %d", got)
	}
}

func TestSnapshotWindowsAreCapped(t *testing.T) {
	a := metrics.NewAggregator(1)
	for i := 0; i < 300; i++ {
		record(a, 200, time.Millisecond)
	}

	snap := a.Snapshot()
	if len(snap.LatencyTrend) > 120 {
		t.Fatalf("latency trend exceeded cap: %d", len(snap.LatencyTrend))
	}
	if len(snap.RecentRequests) > 100 {
		t.Fatalf("recent requests exceeded cap: %d", len(snap.RecentRequests))
	}
}

func TestRecentRequestsNewestFirst(t *testing.T) {
	a := metrics.NewAggregator(1)
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, Path: "/first"})
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, Path: "/second"})

	snap := a.Snapshot()
	if len(snap.RecentRequests) != 2 {
		t.Fatalf("expected 2 recent requests, got %d", len(snap.RecentRequests))
	}
	if snap.RecentRequests[0].Path != "/second" {
		t.Fatalf("expected newest request first, got %q", snap.RecentRequests[0].Path)
	}
}

func TestLimitRecent(t *testing.T) {
	a := metrics.NewAggregator(1)
	for i := 0; i < 30; i++ {
		record(a, 200, time.Millisecond)
	}

	snap := a.Snapshot().LimitRecent(20)
	if len(snap.RecentRequests) != 20 {
		t.Fatalf("expected 20 recent requests after limit, got %d", len(snap.RecentRequests))
	}
}

func TestPercentilesOrdered(t *testing.T) {
	a := metrics.NewAggregator(1)
	for i := 1; i <= 100; i++ {
		record(a, 200, time.Duration(i)*time.Millisecond)
	}

	snap := a.Snapshot()
	if snap.P50Ms > snap.P90Ms || snap.P90Ms > snap.P95Ms || snap.P95Ms > snap.P99Ms {
		t.Fatalf("percentiles out of order: p50=%.2f p90=%.2f p95=%.2f p99=%.2f",
			snap.P50Ms, snap.P90Ms, snap.P95Ms, snap.P99Ms)
	}
	if snap.MinLatencyMs > snap.P50Ms || snap.P99Ms > snap.MaxLatencyMs {
		t.Fatalf("percentiles outside min/max: min=%.2f max=%.2f", snap.MinLatencyMs, snap.MaxLatencyMs)
	}
}

func TestGeoAndDeviceCounts(t *testing.T) {
	a := metrics.NewAggregator(1)
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, Country: "IN", Device: "Mobile"})
	a.Record(metrics.Outcome{Status: 200, Elapsed: time.Millisecond, Country: "IN", Device: "Desktop"})

	snap := a.Snapshot()
	if snap.Geo["IN"] != 2 {
		t.Fatalf("expected geo IN=2, got %d", snap.Geo["IN"])
	}
	if snap.Devices["Mobile"] != 1 || snap.Devices["Desktop"] != 1 {
		t.Fatalf("unexpected device counts: %v", snap.Devices)
	}
}

func TestConcurrentRecording(t *testing.T) {
	a := metrics.NewAggregator(8)
	var wg sync.WaitGroup
	const workers, perWorker = 8, 100

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				record(a, 200, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	if snap.TotalRequests != workers*perWorker {
		t.Fatalf("expected total %d, got %d", workers*perWorker, snap.TotalRequests)
	}
	if snap.StatusCodes["200"] != workers*perWorker {
		t.Fatalf("expected all requests in the 200 bucket, got %d", snap.StatusCodes["200"])
	}
}

func TestGaugesReflectSetters(t *testing.T) {
	a := metrics.NewAggregator(6)
	a.SetSessionCount(3)
	a.SetCacheEnabled(false)
	a.ObserveQueueDepth(5)

	snap := a.Snapshot()
	if snap.UniqueSessions != 3 {
		t.Errorf("expected 3 sessions, got %d", snap.UniqueSessions)
	}
	if snap.CacheEnabled {
		t.Error("expected cache disabled in snapshot")
	}
	if snap.QueueSize != 5 {
		t.Errorf("expected queue size 5, got %d", snap.QueueSize)
	}
	if snap.ThreadPoolSize != 6 {
		t.Errorf("expected pool size 6, got %d", snap.ThreadPoolSize)
	}
}
