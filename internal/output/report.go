// Package output renders run results: text and JSON load-test reports, the
// live progress line, snapshot reports, and standalone HTML documents.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/clientmetrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/threshold"
)

// PrintReport writes a human-readable load-test summary.
func PrintReport(w io.Writer, stats clientmetrics.Stats, results []threshold.Result) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, code := range sortedKeys(stats.StatusCodes) {
			fmt.Fprintf(w, "  %s: %d\n", code, stats.StatusCodes[code])
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] != stats.Errors[names[j]] {
				return stats.Errors[names[i]] > stats.Errors[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", clientmetrics.FriendlyErrorName(name), stats.Errors[name])
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range results {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
}

// ReportDocument is the JSON load-test report body.
type ReportDocument struct {
	Stats      clientmetrics.Stats `json:"stats"`
	Thresholds []ThresholdResult   `json:"thresholds,omitempty"`
}

// ThresholdResult is the JSON form of one evaluated threshold.
type ThresholdResult struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// PrintJSONReport writes the load-test report as indented JSON.
func PrintJSONReport(w io.Writer, stats clientmetrics.Stats, results []threshold.Result) error {
	doc := ReportDocument{Stats: stats}
	for _, r := range results {
		doc.Thresholds = append(doc.Thresholds, ThresholdResult{
			Threshold: r.Threshold.Raw,
			Actual:    r.Actual,
			Pass:      r.Pass,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// PrintSnapshotReport writes a human-readable view of a persisted server
// snapshot.
func PrintSnapshotReport(w io.Writer, p api.Payload) {
	fmt.Fprintln(w, "--- Server Metrics Snapshot ---")
	fmt.Fprintf(w, "Generated At:        %s\n", p.GeneratedAt)
	fmt.Fprintf(w, "Uptime:              %.1fs\n", p.UptimeSeconds)
	fmt.Fprintf(w, "Total Requests:      %d\n", p.TotalRequests)
	fmt.Fprintf(w, "Active Clients:      %d\n", p.ActiveClients)
	fmt.Fprintf(w, "Unique Sessions:     %d\n", p.UniqueSessions)
	fmt.Fprintf(w, "Avg Response Time:   %.4fs\n", p.AverageResponseTime)
	fmt.Fprintf(w, "Latency (ms):        min=%.2f p50=%.2f p90=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		p.MinLatencyMs, p.P50Ms, p.P90Ms, p.P95Ms, p.P99Ms, p.MaxLatencyMs)
	fmt.Fprintf(w, "Cache:               enabled=%t hits=%d misses=%d\n",
		p.CacheEnabled, p.CacheHits, p.CacheMisses)
	fmt.Fprintf(w, "Pool:                workers=%d queue=%d\n", p.ThreadPoolSize, p.QueueSize)

	if len(p.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, code := range sortedKeys(p.StatusCodes) {
			fmt.Fprintf(w, "  %s: %d\n", code, p.StatusCodes[code])
		}
	}
	if len(p.Geo) > 0 {
		fmt.Fprintln(w, "\nGeo:")
		for _, country := range sortedKeys(p.Geo) {
			fmt.Fprintf(w, "  %s: %d\n", country, p.Geo[country])
		}
	}
	if len(p.Devices) > 0 {
		fmt.Fprintln(w, "\nDevices:")
		for _, device := range sortedKeys(p.Devices) {
			fmt.Fprintf(w, "  %s: %d\n", device, p.Devices[device])
		}
	}
	if len(p.RecentRequests) > 0 {
		fmt.Fprintln(w, "\nRecent Requests:")
		for _, r := range p.RecentRequests {
			fmt.Fprintf(w, "  %s %s %d %.4fs %s/%s\n",
				r.IP, r.Path, r.Status, r.ResponseTime, r.Country, r.Device)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
