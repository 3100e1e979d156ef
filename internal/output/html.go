package output

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/clientmetrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/threshold"
)

var htmlFuncs = template.FuncMap{
	"formatFloat": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
	"formatDuration": func(d time.Duration) string {
		return d.String()
	},
	"sparkline": sparklineSVG,
}

// sparklineSVG renders a series as an inline SVG polyline so the report has
// no script or network dependencies.
func sparklineSVG(series []float64) template.HTML {
	const width, height = 600, 120
	if len(series) < 2 {
		return template.HTML(fmt.Sprintf(
			`<svg width="%d" height="%d"><text x="10" y="60" fill="#888">not enough data</text></svg>`,
			width, height))
	}

	maxVal := series[0]
	for _, v := range series {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	var points strings.Builder
	step := float64(width) / float64(len(series)-1)
	for i, v := range series {
		x := float64(i) * step
		y := float64(height) - (v/maxVal)*float64(height-10) - 5
		fmt.Fprintf(&points, "%.1f,%.1f ", x, y)
	}

	return template.HTML(fmt.Sprintf(
		`<svg width="%d" height="%d" viewBox="0 0 %d %d"><polyline fill="none" stroke="#2d7dd2" stroke-width="2" points="%s"/></svg>`,
		width, height, width, height, strings.TrimSpace(points.String())))
}

// LoadtestHTMLData feeds the load-test HTML template.
type LoadtestHTMLData struct {
	GeneratedAt string
	Stats       clientmetrics.Stats
	Thresholds  []threshold.Result
	ErrorNames  map[string]string
}

// GenerateLoadtestHTML writes a standalone HTML report for one load run.
func GenerateLoadtestHTML(w io.Writer, stats clientmetrics.Stats, results []threshold.Result) error {
	names := map[string]string{}
	for raw := range stats.Errors {
		names[raw] = clientmetrics.FriendlyErrorName(raw)
	}
	data := LoadtestHTMLData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Stats:       stats,
		Thresholds:  results,
		ErrorNames:  names,
	}

	tmpl, err := template.New("loadtest").Funcs(htmlFuncs).Parse(loadtestTemplate)
	if err != nil {
		return fmt.Errorf("parse loadtest template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render loadtest report: %w", err)
	}
	return nil
}

// SnapshotHTMLData feeds the server snapshot HTML template.
type SnapshotHTMLData struct {
	GeneratedAt string
	Payload     api.Payload
	Trend       []float64
	History     []float64
}

// GenerateSnapshotHTML writes a standalone HTML report for a persisted
// server snapshot. history supplies the total-requests series across older
// snapshots for the trend section; it may be empty.
func GenerateSnapshotHTML(w io.Writer, p api.Payload, history []api.Payload) error {
	series := make([]float64, 0, len(history))
	for _, h := range history {
		series = append(series, float64(h.TotalRequests))
	}
	data := SnapshotHTMLData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Payload:     p,
		Trend:       p.LatencyTrend,
		History:     series,
	}

	tmpl, err := template.New("snapshot").Funcs(htmlFuncs).Parse(snapshotTemplate)
	if err != nil {
		return fmt.Errorf("parse snapshot template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render snapshot report: %w", err)
	}
	return nil
}

const styleBlock = `<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f7fa; color: #2c3e50; padding: 20px; }
.container { max-width: 1100px; margin: 0 auto; background: white; border-radius: 8px; padding: 24px; box-shadow: 0 1px 4px rgba(0,0,0,0.1); }
h1 { margin-bottom: 4px; } h2 { margin: 20px 0 8px; }
.meta { color: #7f8c8d; font-size: 0.9em; margin-bottom: 16px; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #ecf0f1; }
th { background: #f8f9fa; }
.pass { color: #27ae60; font-weight: bold; } .fail { color: #c0392b; font-weight: bold; }
.grid { display: flex; flex-wrap: wrap; gap: 12px; }
.card { flex: 1 1 180px; background: #f8f9fa; border-radius: 6px; padding: 12px; }
.card .value { font-size: 1.4em; font-weight: bold; }
</style>`

const loadtestTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Load Test Report</title>
` + styleBlock + `
</head>
<body>
<div class="container">
<h1>Load Test Report</h1>
<div class="meta">Generated {{.GeneratedAt}}</div>

<div class="grid">
<div class="card"><div>Total</div><div class="value">{{.Stats.Total}}</div></div>
<div class="card"><div>Successes</div><div class="value">{{.Stats.Successes}}</div></div>
<div class="card"><div>Failures</div><div class="value">{{.Stats.Failures}}</div></div>
<div class="card"><div>Requests/sec</div><div class="value">{{formatFloat .Stats.RequestsPerSec}}</div></div>
<div class="card"><div>Duration</div><div class="value">{{formatDuration .Stats.Duration}}</div></div>
</div>

<h2>Latency</h2>
<table>
<tr><th>Min</th><th>Mean</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr>
<tr>
<td>{{formatFloat .Stats.MinLatencyMs}} ms</td>
<td>{{formatFloat .Stats.MeanLatencyMs}} ms</td>
<td>{{formatFloat .Stats.P50LatencyMs}} ms</td>
<td>{{formatFloat .Stats.P90LatencyMs}} ms</td>
<td>{{formatFloat .Stats.P95LatencyMs}} ms</td>
<td>{{formatFloat .Stats.P99LatencyMs}} ms</td>
<td>{{formatFloat .Stats.MaxLatencyMs}} ms</td>
</tr>
</table>

{{if .Stats.StatusCodes}}
<h2>Status Codes</h2>
<table>
<tr><th>Code</th><th>Count</th></tr>
{{range $code, $count := .Stats.StatusCodes}}<tr><td>{{$code}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Stats.Errors}}
<h2>Errors</h2>
<table>
<tr><th>Error</th><th>Count</th></tr>
{{range $raw, $count := .Stats.Errors}}<tr><td>{{index $.ErrorNames $raw}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Thresholds}}
<h2>Thresholds</h2>
<table>
<tr><th>Threshold</th><th>Actual</th><th>Result</th></tr>
{{range .Thresholds}}<tr><td>{{.Threshold.Raw}}</td><td>{{formatFloat .Actual}}</td><td class="{{if .Pass}}pass{{else}}fail{{end}}">{{if .Pass}}PASS{{else}}FAIL{{end}}</td></tr>
{{end}}
</table>
{{end}}
</div>
</body>
</html>
`

const snapshotTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Server Metrics Report</title>
` + styleBlock + `
</head>
<body>
<div class="container">
<h1>Server Metrics Report</h1>
<div class="meta">Snapshot {{.Payload.GeneratedAt}} &middot; rendered {{.GeneratedAt}}</div>

<div class="grid">
<div class="card"><div>Total Requests</div><div class="value">{{.Payload.TotalRequests}}</div></div>
<div class="card"><div>Active Clients</div><div class="value">{{.Payload.ActiveClients}}</div></div>
<div class="card"><div>Unique Sessions</div><div class="value">{{.Payload.UniqueSessions}}</div></div>
<div class="card"><div>Cache Hits</div><div class="value">{{.Payload.CacheHits}}</div></div>
<div class="card"><div>Cache Misses</div><div class="value">{{.Payload.CacheMisses}}</div></div>
<div class="card"><div>Uptime</div><div class="value">{{formatFloat .Payload.UptimeSeconds}}s</div></div>
</div>

<h2>Latency (ms)</h2>
<table>
<tr><th>Min</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th><th>Average (s)</th></tr>
<tr>
<td>{{formatFloat .Payload.MinLatencyMs}}</td>
<td>{{formatFloat .Payload.P50Ms}}</td>
<td>{{formatFloat .Payload.P90Ms}}</td>
<td>{{formatFloat .Payload.P95Ms}}</td>
<td>{{formatFloat .Payload.P99Ms}}</td>
<td>{{formatFloat .Payload.MaxLatencyMs}}</td>
<td>{{formatFloat .Payload.AverageResponseTime}}</td>
</tr>
</table>

<h2>Latency Trend</h2>
{{sparkline .Trend}}

{{if .History}}
<h2>Total Requests Across Snapshots</h2>
{{sparkline .History}}
{{end}}

{{if .Payload.StatusCodes}}
<h2>Status Codes</h2>
<table>
<tr><th>Code</th><th>Count</th></tr>
{{range $code, $count := .Payload.StatusCodes}}<tr><td>{{$code}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Payload.Geo}}
<h2>Geo</h2>
<table>
<tr><th>Country</th><th>Count</th></tr>
{{range $country, $count := .Payload.Geo}}<tr><td>{{$country}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Payload.Devices}}
<h2>Devices</h2>
<table>
<tr><th>Device</th><th>Count</th></tr>
{{range $device, $count := .Payload.Devices}}<tr><td>{{$device}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Payload.RecentRequests}}
<h2>Recent Requests</h2>
<table>
<tr><th>IP</th><th>Path</th><th>Status</th><th>Time (s)</th><th>Country</th><th>Device</th></tr>
{{range .Payload.RecentRequests}}<tr><td>{{.IP}}</td><td>{{.Path}}</td><td>{{.Status}}</td><td>{{formatFloat .ResponseTime}}</td><td>{{.Country}}</td><td>{{.Device}}</td></tr>
{{end}}
</table>
{{end}}
</div>
</body>
</html>
`
