// Package dashboard renders a live terminal view of the server's metrics
// feed: request totals, latency distribution, cache behavior, and the most
// recent requests.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
)

// Dashboard renders a live terminal UI for server metrics.
type Dashboard struct {
	source    Source
	apiBase   string
	onDone    func()
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	latencyPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	cacheGauge     *widgets.Gauge
	statusList     *widgets.List
	geoList        *widgets.List
	recentList     *widgets.List

	lastErr error
}

// New initializes the terminal and builds the widget layout. onDone is
// invoked when the user quits.
func New(source Source, apiBase string, onDone func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("initialize terminal ui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		source:    source,
		apiBase:   apiBase,
		onDone:    onDone,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Server Summary"
	d.summaryPara.Text = "Connecting..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nP50: 0ms\nP90: 0ms\nP95: 0ms\nP99: 0ms\nMax: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency Trend"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.cacheGauge = widgets.NewGauge()
	d.cacheGauge.Title = "Cache Hit Rate"
	d.cacheGauge.Percent = 0
	d.cacheGauge.BarColor = ui.ColorBlue
	d.cacheGauge.BorderStyle.Fg = ui.ColorCyan
	d.cacheGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.geoList = widgets.NewList()
	d.geoList.Title = "Geo / Devices"
	d.geoList.Rows = []string{"Awaiting data"}
	d.geoList.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.geoList.BorderStyle.Fg = ui.ColorCyan

	d.recentList = widgets.NewList()
	d.recentList.Title = "Recent Requests"
	d.recentList.Rows = []string{"Awaiting data"}
	d.recentList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.recentList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.cacheGauge),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.5, d.statusList),
			ui.NewCol(0.5, d.geoList),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.recentList),
		),
	)
}

// Start begins the dashboard event loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop tears down the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.onDone != nil {
					d.onDone()
				}
			case "c":
				d.toggleCache()
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case p, ok := <-d.source.Payloads():
			if !ok {
				if d.onDone != nil {
					d.onDone()
				}
				continue
			}
			d.update(p)
			d.render()
		case err := <-d.source.Errs():
			d.mu.Lock()
			d.lastErr = err
			d.mu.Unlock()
			d.render()
		}
	}
}

func (d *Dashboard) toggleCache() {
	ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
	defer cancel()
	if err := ToggleCache(ctx, d.apiBase); err != nil {
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
	}
}

func (d *Dashboard) update(p api.Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cacheState := "off"
	if p.CacheEnabled {
		cacheState = "on"
	}
	statusLine := ""
	if d.lastErr != nil {
		statusLine = fmt.Sprintf("\n[last error: %v](fg:red)", d.lastErr)
	}
	d.summaryPara.Text = fmt.Sprintf(
		"API: %s | press q to quit, c to toggle cache\nUptime: %s | Active: %d | Total: %d | Sessions: %d | Pool: %d | Queue: %d | Cache: %s%s",
		d.apiBase,
		(time.Duration(p.UptimeSeconds)*time.Second).String(),
		p.ActiveClients,
		p.TotalRequests,
		p.UniqueSessions,
		p.ThreadPoolSize,
		p.QueueSize,
		cacheState,
		statusLine,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP95:  %.2fms\nP99:  %.2fms\nMax:  %.2fms\nAvg:  %.3fs",
		p.MinLatencyMs, p.P50Ms, p.P90Ms, p.P95Ms, p.P99Ms, p.MaxLatencyMs,
		p.AverageResponseTime,
	)

	if len(p.LatencyTrend) > 0 {
		d.latencySparkle.Sparklines[0].Data = p.LatencyTrend
		d.latencySparkle.Title = fmt.Sprintf("Latency Trend | Last: %.2fms",
			p.LatencyTrend[len(p.LatencyTrend)-1])
	}

	lookups := p.CacheHits + p.CacheMisses
	hitRate := 0
	if lookups > 0 {
		hitRate = int(float64(p.CacheHits) / float64(lookups) * 100)
	}
	d.cacheGauge.Percent = hitRate
	d.cacheGauge.Label = fmt.Sprintf("%d%% (%d hits / %d misses)", hitRate, p.CacheHits, p.CacheMisses)
	if p.CacheEnabled {
		d.cacheGauge.BarColor = ui.ColorBlue
	} else {
		d.cacheGauge.BarColor = ui.ColorRed
	}

	d.statusList.Rows = formatCountRows(p.StatusCodes, "No requests yet")
	d.geoList.Rows = formatGeoDeviceRows(p)
	d.recentList.Rows = formatRecentRows(p.RecentRequests)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatCountRows(counts map[string]int64, empty string) []string {
	if len(counts) == 0 {
		return []string{fmt.Sprintf("[%s](fg:green)", empty)}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]string, 0, len(keys))
	for _, k := range keys {
		color := "green"
		if strings.HasPrefix(k, "4") || strings.HasPrefix(k, "5") {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:%s) %d", k, color, counts[k]))
	}
	return rows
}

func formatGeoDeviceRows(p api.Payload) []string {
	if len(p.Geo) == 0 && len(p.Devices) == 0 {
		return []string{"[No data yet](fg:green)"}
	}
	rows := make([]string, 0, len(p.Geo)+len(p.Devices))
	for _, k := range sortedCountKeys(p.Geo) {
		rows = append(rows, fmt.Sprintf("[geo](fg:cyan) %s %d", k, p.Geo[k]))
	}
	for _, k := range sortedCountKeys(p.Devices) {
		rows = append(rows, fmt.Sprintf("[dev](fg:magenta) %s %d", k, p.Devices[k]))
	}
	return rows
}

func sortedCountKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] == m[keys[j]] {
			return keys[i] < keys[j]
		}
		return m[keys[i]] > m[keys[j]]
	})
	return keys
}

func formatRecentRows(records []metrics.RequestRecord) []string {
	if len(records) == 0 {
		return []string{"[No requests yet](fg:green)"}
	}
	// The window is already newest-first.
	rows := make([]string, 0, len(records))
	for _, r := range records {
		color := "green"
		if r.Status >= 400 {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%3d](fg:%s) %-24s %6.1fms %s %s/%s",
			r.Status, color, r.Path, r.ResponseTime*1000, r.IP, r.Country, r.Device))
	}
	return rows
}
