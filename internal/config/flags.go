package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// RegisterCommonFlags registers the flags shared by every subcommand.
func RegisterCommonFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (YAML, JSON, or TOML)")
	flags.String("log-level", "info", "Log level: debug, info, warn, or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("trace-endpoint", "", "OTLP trace export endpoint (empty disables tracing)")
	flags.String("trace-protocol", "grpc", "OTLP transport: grpc or http")
	flags.Bool("trace-insecure", false, "Disable TLS on the OTLP connection")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio in [0, 1]")
}

// RegisterServeFlags registers the serve subcommand's flags.
func RegisterServeFlags(flags *pflag.FlagSet) {
	flags.String("listen", DefaultListen, "Core server listen address")
	flags.String("ops-listen", DefaultOpsListen, "Ops/API server listen address")
	flags.String("static-root", DefaultStaticRoot, "Directory served as static content")
	flags.IntP("pool-size", "w", DefaultPoolSize, "Number of worker goroutines")
	flags.IntP("queue-capacity", "q", DefaultQueueCapacity, "Bounded task queue capacity")
	flags.Duration("shutdown-grace", DefaultShutdownGrace, "Max time to wait for in-flight requests on shutdown")
	flags.Duration("read-timeout", DefaultReadTimeout, "Per-connection request read deadline")
	flags.Bool("simulate-latency", false, "Inject artificial per-request latency")
	flags.Bool("cache-enabled", true, "Start with the response cache enabled")
	flags.String("snapshot-dir", "", "Directory for periodic metrics snapshots (empty disables)")
	flags.Duration("snapshot-interval", DefaultSnapshotInterval, "Interval between metrics snapshots")
	flags.Duration("stream-interval", time.Second, "Push interval for the WebSocket metrics feed")
	flags.Bool("print-config", false, "Print the effective configuration as YAML and exit")
}

// RegisterLoadtestFlags registers the loadtest subcommand's flags.
func RegisterLoadtestFlags(flags *pflag.FlagSet) {
	flags.String("url", "", "Base URL of the server under test")
	flags.StringSlice("path", nil, "Request path to hit (repeatable)")
	flags.String("feeder-csv", "", "CSV file providing request targets")
	flags.String("har", "", "HAR file to import as request targets")
	flags.String("har-filter", "", "Filter HAR entries (e.g. 'host:example.com;method:GET')")
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.IntP("total", "t", 0, "Total number of requests to send (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run the test (e.g. 30s, 1m)")
	flags.IntP("rate", "r", 0, "Requests per second limit (0 means unlimited)")
	flags.String("arrival", string(ArrivalModelUniform), "Arrival model: uniform or poisson")
	flags.Int64("seed", 0, "Random seed for arrivals and target selection (0 means time-based)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.StringSlice("header", nil, "Additional request header in key=value form (repeatable)")
	flags.Int("retries", 0, "Retry attempts per request on 429/5xx")
	flags.Duration("retry-base", 100*time.Millisecond, "Base backoff delay between retries")
	flags.Duration("retry-max", 2*time.Second, "Max backoff delay between retries")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'p95<800ms')")
	flags.StringP("output", "o", "", "Write the report to this path instead of stdout")
	flags.String("format", "text", "Report format: text, json, or html")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.Bool("print-config", false, "Print the effective configuration as YAML and exit")
}

// ApplyCommonFlagOverrides layers explicitly-set shared flags onto cfg.
// Changed-detection keeps a flag left at its default from clobbering file or
// environment values.
func ApplyCommonFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}

// ApplyServeFlagOverrides layers explicitly-set serve flags onto cfg.
func ApplyServeFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if err := ApplyCommonFlagOverrides(cfg, fs); err != nil {
		return err
	}
	if fs.Changed("listen") {
		val, err := fs.GetString("listen")
		if err != nil {
			return err
		}
		cfg.Server.Listen = strings.TrimSpace(val)
	}
	if fs.Changed("ops-listen") {
		val, err := fs.GetString("ops-listen")
		if err != nil {
			return err
		}
		cfg.Server.OpsListen = strings.TrimSpace(val)
	}
	if fs.Changed("static-root") {
		val, err := fs.GetString("static-root")
		if err != nil {
			return err
		}
		cfg.Server.StaticRoot = strings.TrimSpace(val)
	}
	if fs.Changed("pool-size") {
		val, err := fs.GetInt("pool-size")
		if err != nil {
			return err
		}
		cfg.Server.PoolSize = val
	}
	if fs.Changed("queue-capacity") {
		val, err := fs.GetInt("queue-capacity")
		if err != nil {
			return err
		}
		cfg.Server.QueueCapacity = val
	}
	if fs.Changed("shutdown-grace") {
		val, err := fs.GetDuration("shutdown-grace")
		if err != nil {
			return err
		}
		cfg.Server.ShutdownGrace = val
	}
	if fs.Changed("read-timeout") {
		val, err := fs.GetDuration("read-timeout")
		if err != nil {
			return err
		}
		cfg.Server.ReadTimeout = val
	}
	if fs.Changed("simulate-latency") {
		val, err := fs.GetBool("simulate-latency")
		if err != nil {
			return err
		}
		cfg.Server.SimulateLatency = val
	}
	if fs.Changed("cache-enabled") {
		val, err := fs.GetBool("cache-enabled")
		if err != nil {
			return err
		}
		cfg.Server.CacheEnabled = val
	}
	if fs.Changed("snapshot-dir") {
		val, err := fs.GetString("snapshot-dir")
		if err != nil {
			return err
		}
		cfg.Server.SnapshotDir = strings.TrimSpace(val)
	}
	if fs.Changed("snapshot-interval") {
		val, err := fs.GetDuration("snapshot-interval")
		if err != nil {
			return err
		}
		cfg.Server.SnapshotInterval = val
	}
	if fs.Changed("stream-interval") {
		val, err := fs.GetDuration("stream-interval")
		if err != nil {
			return err
		}
		cfg.Server.StreamInterval = val
	}
	return nil
}

// ApplyLoadtestFlagOverrides layers explicitly-set loadtest flags onto cfg.
func ApplyLoadtestFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if err := ApplyCommonFlagOverrides(cfg, fs); err != nil {
		return err
	}
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.Loadtest.URL = strings.TrimSpace(val)
	}
	if fs.Changed("path") {
		vals, err := fs.GetStringSlice("path")
		if err != nil {
			return err
		}
		cfg.Loadtest.Paths = vals
	}
	if fs.Changed("feeder-csv") {
		val, err := fs.GetString("feeder-csv")
		if err != nil {
			return err
		}
		cfg.Loadtest.FeederCSV = strings.TrimSpace(val)
	}
	if fs.Changed("har") {
		val, err := fs.GetString("har")
		if err != nil {
			return err
		}
		cfg.Loadtest.HARFile = strings.TrimSpace(val)
	}
	if fs.Changed("har-filter") {
		val, err := fs.GetString("har-filter")
		if err != nil {
			return err
		}
		cfg.Loadtest.HARFilter = strings.TrimSpace(val)
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Loadtest.Concurrency = val
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return err
		}
		cfg.Loadtest.Total = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Loadtest.Duration = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Loadtest.Rate = val
	}
	if fs.Changed("arrival") {
		val, err := fs.GetString("arrival")
		if err != nil {
			return err
		}
		cfg.Loadtest.Arrival = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Loadtest.Seed = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Loadtest.Timeout = val
	}
	if fs.Changed("header") {
		vals, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		if cfg.Loadtest.Headers == nil {
			cfg.Loadtest.Headers = map[string]string{}
		}
		for _, entry := range vals {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			cfg.Loadtest.Headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Loadtest.Retries = val
	}
	if fs.Changed("retry-base") {
		val, err := fs.GetDuration("retry-base")
		if err != nil {
			return err
		}
		cfg.Loadtest.RetryBase = val
	}
	if fs.Changed("retry-max") {
		val, err := fs.GetDuration("retry-max")
		if err != nil {
			return err
		}
		cfg.Loadtest.RetryMax = val
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Loadtest.Thresholds = vals
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Loadtest.Output = strings.TrimSpace(val)
	}
	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Loadtest.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.Loadtest.LogErrors = val
	}
	return nil
}
