package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/dashboard"
)

var dashboardFlags struct {
	apiBase  string
	live     bool
	interval time.Duration
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Watch a running server's metrics in the terminal",
	Long: `Render a live terminal dashboard from a running server's ops API:
request totals, latency trend and percentiles, cache hit rate, status codes,
geo/device mix, and the most recent requests.

By default the dashboard polls /api/metrics; with --live it subscribes to
the WebSocket feed instead. Press q to quit and c to toggle the server's
response cache.`,
	Example: `  # Poll the default ops address
  mtws dashboard

  # Subscribe to the push feed of a remote server
  mtws dashboard --api http://10.0.0.5:9090 --live`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardFlags.apiBase, "api", "http://127.0.0.1:9090", "Base URL of the server's ops API")
	dashboardCmd.Flags().BoolVar(&dashboardFlags.live, "live", false, "Subscribe to the WebSocket feed instead of polling")
	dashboardCmd.Flags().DurationVar(&dashboardFlags.interval, "interval", time.Second, "Poll interval (ignored with --live)")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	var source dashboard.Source
	if dashboardFlags.live {
		dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := dashboard.NewStreamSource(dialCtx, dashboardFlags.apiBase)
		if err != nil {
			return err
		}
		source = s
	} else {
		source = dashboard.NewPollSource(dashboardFlags.apiBase, dashboardFlags.interval)
	}
	defer source.Close()

	done := make(chan struct{})
	var once sync.Once
	quit := func() { once.Do(func() { close(done) }) }

	dash, err := dashboard.New(source, dashboardFlags.apiBase, quit)
	if err != nil {
		return err
	}
	dash.Start()
	defer dash.Stop()

	<-done
	return nil
}
