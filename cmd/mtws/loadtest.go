package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/clientmetrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/feeder"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/har"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/httpclient"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/output"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/runner"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/threshold"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/tracing"
)

const (
	progressInterval   = time.Second
	maxLoggedBodyBytes = 1024
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Generate HTTP load against a server and report the results",
	Long: `Drive concurrent HTTP traffic against a target server. Targets come
from --path flags, a CSV dataset, or an imported HAR capture; pacing follows
a flat rate or configured load patterns with uniform or Poisson arrivals.
Results can be checked against pass/fail thresholds and reported as text,
JSON, or HTML.`,
	Example: `  # 4 workers, 200 requests against the local server
  mtws loadtest --url http://127.0.0.1:8081 -c 4 -t 200

  # Paced run with latency and error-rate gates
  mtws loadtest --url http://127.0.0.1:8081 -c 8 -d 30s -r 50 \
    --threshold 'p95<800ms' --threshold 'error_rate<0.01'

  # Replay a HAR capture as an HTML report
  mtws loadtest --har traffic.har --format html -o report.html`,
	RunE: runLoadtest,
}

func init() {
	config.RegisterCommonFlags(loadtestCmd.Flags())
	config.RegisterLoadtestFlags(loadtestCmd.Flags())
	rootCmd.AddCommand(loadtestCmd)
}

type loadRequester struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	feeder    feeder.Feeder
	collector *clientmetrics.Collector
	tracer    trace.Tracer
}

type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[mtws] request failed: %v\n", err)
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, config.ApplyLoadtestFlagOverrides)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLoadtest(); err != nil {
		return err
	}

	if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
		return printConfigYAML(cfg)
	}

	lt := cfg.Loadtest

	thresholds, err := threshold.ParseMultiple(lt.Thresholds)
	if err != nil {
		return err
	}

	seed := lt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	feed, baseURL, err := buildFeeder(lt, seed)
	if err != nil {
		return err
	}

	builder, err := httpclient.NewRequestBuilder(baseURL, lt.Headers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	collector := clientmetrics.NewCollector()
	requester := &loadRequester{
		client:    httpclient.NewClient(lt.Timeout),
		builder:   builder,
		feeder:    feed,
		collector: collector,
		tracer:    provider.Tracer(),
	}

	var wrapped runner.Requester = requester
	if lt.LogErrors {
		wrapped = runner.WithLogging(wrapped, &stderrFailureLogger{})
	}
	if lt.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, runner.BackoffPolicy(lt.Retries, lt.RetryBase, lt.RetryMax, seed))
	}

	r := runner.New(runner.Options{
		Concurrency:   lt.Concurrency,
		TotalRequests: lt.Total,
		Duration:      lt.Duration,
		RatePerSecond: lt.Rate,
		ArrivalModel:  lt.Arrival,
		Patterns:      lt.Patterns,
		RandomSeed:    seed,
		Requester:     wrapped,
	})

	// An unbounded run with no duration, total, or pattern schedule would
	// never stop on its own; require at least one stop condition.
	if lt.Duration == 0 && lt.Total == 0 && r.PlanDuration() == 0 {
		return fmt.Errorf("either --duration, --total, or load patterns must bound the run")
	}

	format := strings.ToLower(strings.TrimSpace(lt.Format))
	if format == "" {
		format = "text"
	}

	var progress *output.ProgressReporter
	if format == "text" && lt.Output == "" {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
	}

	result := r.Run(ctx)

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stdout)
	}

	stats := collector.Stats(result.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)

	out := io.Writer(os.Stdout)
	if lt.Output != "" {
		f, err := os.Create(lt.Output)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		if err := output.PrintJSONReport(out, stats, results); err != nil {
			return err
		}
	case "html":
		if err := output.GenerateLoadtestHTML(out, stats, results); err != nil {
			return err
		}
	default:
		output.PrintReport(out, stats, results)
	}

	if !threshold.AllPassed(results) {
		return fmt.Errorf("thresholds failed")
	}
	if result.Errors > 0 {
		return fmt.Errorf("%d requests failed", result.Errors)
	}
	return nil
}

// buildFeeder selects the target source: HAR capture, CSV dataset, or the
// configured paths, in that precedence order.
func buildFeeder(lt config.LoadtestConfig, seed int64) (feeder.Feeder, string, error) {
	baseURL := strings.TrimSpace(lt.URL)

	if lt.HARFile != "" {
		doc, err := har.ParseFile(lt.HARFile)
		if err != nil {
			return nil, "", err
		}
		opts := har.DefaultOptions()
		if lt.HARFilter != "" {
			opts = har.ParseFilter(lt.HARFilter)
		}
		targets, err := har.Convert(doc, opts)
		if err != nil {
			return nil, "", err
		}
		if baseURL == "" {
			baseURL = harBaseURL(doc)
			if baseURL == "" {
				return nil, "", fmt.Errorf("could not derive a base URL from the HAR file; pass --url")
			}
		}
		feed, err := feeder.NewStatic(targets, seed)
		return feed, baseURL, err
	}

	if lt.FeederCSV != "" {
		feed, err := feeder.NewCSVFeeder(lt.FeederCSV, true)
		return feed, baseURL, err
	}

	feed, err := feeder.FromPaths(lt.Paths, seed)
	return feed, baseURL, err
}

// harBaseURL returns scheme://host of the first parseable entry.
func harBaseURL(doc *har.HAR) string {
	if doc == nil || doc.Log == nil {
		return ""
	}
	for _, entry := range doc.Log.Entries {
		if entry == nil || entry.Request == nil {
			continue
		}
		parsed, err := url.Parse(entry.Request.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			continue
		}
		return parsed.Scheme + "://" + parsed.Host
	}
	return ""
}

// Do issues one request: draw a target, build and send the request, and
// record the outcome. Responses of 400 and above surface as HTTPError so the
// retry policy and failure counters see them.
func (r *loadRequester) Do(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	target, err := r.feeder.Next()
	if err != nil {
		r.collector.RecordRequest(time.Since(start), 0, err)
		return err
	}

	req, err := r.builder.Build(ctx, target)
	if err != nil {
		r.collector.RecordRequest(time.Since(start), 0, err)
		return err
	}

	spanCtx, span := tracing.StartClientSpan(ctx, r.tracer, target.Path)
	tracing.InjectHTTPHeaders(spanCtx, req.Header)

	resp, err := r.client.Do(req.WithContext(spanCtx))
	latency := time.Since(start)
	if err != nil {
		tracing.EndSpan(span, err)
		r.collector.RecordRequest(latency, 0, err)
		return err
	}

	var resultErr error
	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		if readErr != nil {
			resultErr = readErr
		} else {
			resultErr = &runner.HTTPError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(snippet)),
			}
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	tracing.EndSpan(span, resultErr, tracing.StatusAttr(resp.StatusCode), tracing.PathAttr(target.Path))
	r.collector.RecordRequest(latency, resp.StatusCode, resultErr)
	return resultErr
}
