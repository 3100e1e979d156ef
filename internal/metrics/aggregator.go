// Package metrics implements the server's thread-safe metrics aggregator.
// All mutable counters live behind a single mutex; readers only ever see
// point-in-time copies produced by Snapshot, never the live state.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Caps on the rolling windows. Trend feeds the dashboard sparkline,
	// recent feeds the request table, window drives the rolling average.
	maxTrend  = 120
	maxRecent = 100
	maxWindow = 2000
)

// Outcome describes one completed request, as reported by the handler.
type Outcome struct {
	Status    int
	Elapsed   time.Duration
	CacheHit  bool
	CacheMiss bool
	IP        string
	Path      string
	Country   string
	Device    string
	At        time.Time
}

// RequestRecord is one row of the recent-requests window.
type RequestRecord struct {
	IP           string  `json:"ip"`
	Path         string  `json:"path"`
	Status       int     `json:"status_code"`
	ResponseTime float64 `json:"response_time"`
	Country      string  `json:"country"`
	Device       string  `json:"device"`
	Time         string  `json:"time"`
}

// Snapshot is a consistent point-in-time copy of the aggregate state.
// Field names follow the ops API wire format.
type Snapshot struct {
	ActiveClients       int64            `json:"active_clients"`
	TotalRequests       int64            `json:"total_requests"`
	AverageResponseTime float64          `json:"average_response_time"`
	MinLatencyMs        float64          `json:"min_latency_ms"`
	MaxLatencyMs        float64          `json:"max_latency_ms"`
	P50Ms               float64          `json:"p50_ms"`
	P90Ms               float64          `json:"p90_ms"`
	P95Ms               float64          `json:"p95_ms"`
	P99Ms               float64          `json:"p99_ms"`
	CacheEnabled        bool             `json:"cache_enabled"`
	CacheHits           int64            `json:"cache_hits"`
	CacheMisses         int64            `json:"cache_misses"`
	UniqueSessions      int64            `json:"unique_sessions"`
	ThreadPoolSize      int              `json:"thread_pool_size"`
	QueueSize           int              `json:"queue_size"`
	LatencyTrend        []float64        `json:"latency_trend"`
	StatusCodes         map[string]int64 `json:"status_codes"`
	Geo                 map[string]int64 `json:"geo"`
	Devices             map[string]int64 `json:"devices"`
	RecentRequests      []RequestRecord  `json:"recent_requests"`
	UptimeSeconds       float64          `json:"uptime_seconds"`
	GeneratedAt         string           `json:"generated_at"`
}

// Aggregator records per-request outcomes in a thread-safe manner. One
// instance is shared by every worker; the ops server, dashboard feed,
// and snapshot store read from it via Snapshot.
type Aggregator struct {
	mu sync.Mutex

	hist        *hdrhistogram.Histogram
	total       int64
	statusCodes map[string]int64
	cacheHits   int64
	cacheMisses int64
	cacheOn     bool

	active   int64
	sessions int64
	poolSize int
	queueLen int

	sumLatency time.Duration
	minLatency time.Duration
	maxLatency time.Duration

	window    []time.Duration
	windowSum time.Duration
	trend     []float64
	recent    []RequestRecord
	geo       map[string]int64
	devices   map[string]int64

	start time.Time
}

// NewAggregator returns an aggregator reporting poolSize as the worker
// gauge. Latencies are tracked from 1µs up to 60s with 3 significant
// figures.
func NewAggregator(poolSize int) *Aggregator {
	return &Aggregator{
		hist: hdrhistogram.New(1, 60_000_000, 3),
		statusCodes: map[string]int64{
			"200": 0, "400": 0, "404": 0, "500": 0,
		},
		cacheOn:  true,
		poolSize: poolSize,
		geo:      make(map[string]int64),
		devices:  make(map[string]int64),
		start:    time.Now(),
	}
}

// Record folds one request outcome into every counter and window in a
// single critical section, so no reader can observe a torn update. The
// sum of the status-code counters always equals the total.
func (a *Aggregator) Record(o Outcome) {
	code := statusKey(o.Status)
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.statusCodes[code]++

	if o.CacheHit {
		a.cacheHits++
	}
	if o.CacheMiss {
		a.cacheMisses++
	}

	us := o.Elapsed.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)

	if a.minLatency == 0 || o.Elapsed < a.minLatency {
		a.minLatency = o.Elapsed
	}
	if o.Elapsed > a.maxLatency {
		a.maxLatency = o.Elapsed
	}
	a.sumLatency += o.Elapsed

	a.window = append(a.window, o.Elapsed)
	a.windowSum += o.Elapsed
	if len(a.window) > maxWindow {
		a.windowSum -= a.window[0]
		a.window = a.window[1:]
	}

	a.trend = append(a.trend, float64(o.Elapsed)/float64(time.Millisecond))
	if len(a.trend) > maxTrend {
		a.trend = a.trend[1:]
	}

	rec := RequestRecord{
		IP:           o.IP,
		Path:         o.Path,
		Status:       o.Status,
		ResponseTime: roundSeconds(o.Elapsed),
		Country:      o.Country,
		Device:       o.Device,
		Time:         at.Format("2006-01-02 15:04:05"),
	}
	a.recent = append([]RequestRecord{rec}, a.recent...)
	if len(a.recent) > maxRecent {
		a.recent = a.recent[:maxRecent]
	}

	if o.Country != "" {
		a.geo[o.Country]++
	}
	if o.Device != "" {
		a.devices[o.Device]++
	}
}

// ConnOpened increments the active-connection gauge.
func (a *Aggregator) ConnOpened() {
	a.mu.Lock()
	a.active++
	a.mu.Unlock()
}

// ConnClosed decrements the active-connection gauge, never below zero.
func (a *Aggregator) ConnClosed() {
	a.mu.Lock()
	if a.active > 0 {
		a.active--
	}
	a.mu.Unlock()
}

// ObserveQueueDepth updates the queue-depth gauge; called by the acceptor
// after each enqueue.
func (a *Aggregator) ObserveQueueDepth(depth int) {
	a.mu.Lock()
	a.queueLen = depth
	a.mu.Unlock()
}

// SetSessionCount pushes the unique-session gauge from the registry.
func (a *Aggregator) SetSessionCount(n int) {
	a.mu.Lock()
	a.sessions = int64(n)
	a.mu.Unlock()
}

// SetCacheEnabled mirrors the cache toggle into the snapshot.
func (a *Aggregator) SetCacheEnabled(enabled bool) {
	a.mu.Lock()
	a.cacheOn = enabled
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of the aggregate state. Percentiles
// are computed from the histogram inside the lock; slices and maps are
// copied so the caller never shares mutable state with the aggregator.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		ActiveClients:  a.active,
		TotalRequests:  a.total,
		CacheEnabled:   a.cacheOn,
		CacheHits:      a.cacheHits,
		CacheMisses:    a.cacheMisses,
		UniqueSessions: a.sessions,
		ThreadPoolSize: a.poolSize,
		QueueSize:      a.queueLen,
		MinLatencyMs:   float64(a.minLatency) / float64(time.Millisecond),
		MaxLatencyMs:   float64(a.maxLatency) / float64(time.Millisecond),
		UptimeSeconds:  time.Since(a.start).Seconds(),
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	if len(a.window) > 0 {
		snap.AverageResponseTime = (a.windowSum / time.Duration(len(a.window))).Seconds()
	}

	if a.hist.TotalCount() > 0 {
		snap.P50Ms = float64(a.hist.ValueAtQuantile(50)) / 1000.0
		snap.P90Ms = float64(a.hist.ValueAtQuantile(90)) / 1000.0
		snap.P95Ms = float64(a.hist.ValueAtQuantile(95)) / 1000.0
		snap.P99Ms = float64(a.hist.ValueAtQuantile(99)) / 1000.0
	}

	snap.LatencyTrend = append([]float64(nil), a.trend...)
	snap.RecentRequests = append([]RequestRecord(nil), a.recent...)

	snap.StatusCodes = make(map[string]int64, len(a.statusCodes))
	for k, v := range a.statusCodes {
		snap.StatusCodes[k] = v
	}
	snap.Geo = make(map[string]int64, len(a.geo))
	for k, v := range a.geo {
		snap.Geo[k] = v
	}
	snap.Devices = make(map[string]int64, len(a.devices))
	for k, v := range a.devices {
		snap.Devices[k] = v
	}

	return snap
}

// LimitRecent returns a copy of the snapshot with the recent-requests
// window capped at n; the ops API serves a shorter window than the
// aggregator retains.
func (s Snapshot) LimitRecent(n int) Snapshot {
	if n >= 0 && len(s.RecentRequests) > n {
		s.RecentRequests = s.RecentRequests[:n]
	}
	return s
}

func statusKey(status int) string {
	switch status {
	case 200:
		return "200"
	case 400:
		return "400"
	case 404:
		return "404"
	case 500:
		return "500"
	default:
		return strconv.Itoa(status)
	}
}

func roundSeconds(d time.Duration) float64 {
	s := d.Seconds()
	return float64(int64(s*10000+0.5)) / 10000
}
