package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix recognized on environment overrides, e.g.
// MTWS_SERVER_POOL_SIZE=4 sets server.pool_size.
const EnvPrefix = "MTWS_"

// Load builds a Config from defaults, an optional config file, and MTWS_
// environment variables, in that precedence order (flag overrides are
// applied separately by the cmd layer).
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.ConfigFile = path

	if strings.TrimSpace(path) != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := applySettings(cfg, v.AllSettings()); err != nil {
			return nil, err
		}
	}

	if err := applySettings(cfg, envSettings(os.Environ())); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}

// envSettings rebuilds a nested settings map from MTWS_ variables. The first
// underscore-delimited token after the prefix names the section; the rest is
// the key, e.g. MTWS_LOADTEST_RETRY_BASE → loadtest.retry_base.
func envSettings(environ []string) map[string]interface{} {
	sections := map[string]interface{}{}
	for _, entry := range environ {
		if !strings.HasPrefix(entry, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		name := strings.ToLower(entry[len(EnvPrefix):eq])
		value := entry[eq+1:]

		section, key, ok := strings.Cut(name, "_")
		if !ok || key == "" {
			continue
		}
		switch section {
		case "server", "loadtest", "log", "tracing":
		default:
			continue
		}

		sub, _ := sections[section].(map[string]interface{})
		if sub == nil {
			sub = map[string]interface{}{}
			sections[section] = sub
		}
		sub[key] = value
	}
	return sections
}

// applySettings layers a nested settings map (viper file contents or the env
// overlay) onto cfg.
func applySettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "server"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if err := applyServerSettings(&cfg.Server, entry); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "loadtest"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("loadtest: %w", err)
		}
		if err := applyLoadtestSettings(&cfg.Loadtest, entry); err != nil {
			return fmt.Errorf("loadtest: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		if err := applyLogSettings(&cfg.Log, entry); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if err := applyTracingSettings(&cfg.Tracing, entry); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyServerSettings(srv *ServerConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "listen", "addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			srv.Listen = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "opslisten", "ops_listen", "ops-listen"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("ops_listen: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			srv.OpsListen = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "staticroot", "static_root", "static-root"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("static_root: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			srv.StaticRoot = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "poolsize", "pool_size", "pool-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("pool_size: %w", err)
		}
		srv.PoolSize = val
	}
	if raw, ok := lookupSetting(settings, "queuecapacity", "queue_capacity", "queue-capacity"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("queue_capacity: %w", err)
		}
		srv.QueueCapacity = val
	}
	if raw, ok := lookupSetting(settings, "shutdowngrace", "shutdown_grace", "shutdown-grace"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("shutdown_grace: %w", err)
		}
		srv.ShutdownGrace = dur
	}
	if raw, ok := lookupSetting(settings, "readtimeout", "read_timeout", "read-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("read_timeout: %w", err)
		}
		srv.ReadTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "simulatelatency", "simulate_latency", "simulate-latency"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("simulate_latency: %w", err)
		}
		srv.SimulateLatency = val
	}
	if raw, ok := lookupSetting(settings, "cacheenabled", "cache_enabled", "cache-enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("cache_enabled: %w", err)
		}
		srv.CacheEnabled = val
	}
	if raw, ok := lookupSetting(settings, "snapshotdir", "snapshot_dir", "snapshot-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("snapshot_dir: %w", err)
		}
		srv.SnapshotDir = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "snapshotinterval", "snapshot_interval", "snapshot-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("snapshot_interval: %w", err)
		}
		srv.SnapshotInterval = dur
	}
	if raw, ok := lookupSetting(settings, "streaminterval", "stream_interval", "stream-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("stream_interval: %w", err)
		}
		srv.StreamInterval = dur
	}
	return nil
}

func applyLoadtestSettings(lt *LoadtestConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "url", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		lt.URL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "paths"); ok {
		paths, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("paths: %w", err)
		}
		lt.Paths = paths
	}
	if raw, ok := lookupSetting(settings, "feedercsv", "feeder_csv", "feeder-csv"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("feeder_csv: %w", err)
		}
		lt.FeederCSV = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "harfile", "har_file", "har-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("har_file: %w", err)
		}
		lt.HARFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "harfilter", "har_filter", "har-filter"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("har_filter: %w", err)
		}
		lt.HARFilter = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		lt.Concurrency = val
	}
	if raw, ok := lookupSetting(settings, "total"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		lt.Total = val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		lt.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		lt.Rate = val
	}
	if raw, ok := lookupSetting(settings, "arrival", "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		model := strings.ToLower(strings.TrimSpace(val))
		if model != "" {
			lt.Arrival = ArrivalModel(model)
		}
	}
	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		lt.Seed = val
	}
	if raw, ok := lookupSetting(settings, "patterns", "loadpatterns", "load_patterns", "load-patterns"); ok {
		patterns, err := parseLoadPatterns(raw)
		if err != nil {
			return fmt.Errorf("patterns: %w", err)
		}
		lt.Patterns = patterns
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		lt.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if lt.Headers == nil {
			lt.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			lt.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		lt.Retries = val
	}
	if raw, ok := lookupSetting(settings, "retrybase", "retry_base", "retry-base"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retry_base: %w", err)
		}
		lt.RetryBase = dur
	}
	if raw, ok := lookupSetting(settings, "retrymax", "retry_max", "retry-max"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retry_max: %w", err)
		}
		lt.RetryMax = dur
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		lt.Thresholds = thresholds
	}
	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		lt.Output = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			lt.Format = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_errors: %w", err)
		}
		lt.LogErrors = val
	}
	return nil
}

func parseLoadPatterns(value interface{}) ([]LoadPattern, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	patterns := make([]LoadPattern, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		pattern, err := buildLoadPattern(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func buildLoadPattern(settings map[string]interface{}) (LoadPattern, error) {
	var pattern LoadPattern
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("name: %w", err)
		}
		pattern.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("type: %w", err)
		}
		pattern.Type = LoadPatternType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("rps: %w", err)
		}
		pattern.RPS = val
	}
	if raw, ok := lookupSetting(settings, "fromrps", "from_rps", "from-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("from_rps: %w", err)
		}
		pattern.FromRPS = val
	}
	if raw, ok := lookupSetting(settings, "torps", "to_rps", "to-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("to_rps: %w", err)
		}
		pattern.ToRPS = val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("duration: %w", err)
		}
		pattern.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "period"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("period: %w", err)
		}
		pattern.Period = dur
	}
	if raw, ok := lookupSetting(settings, "duty"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("duty: %w", err)
		}
		pattern.Duty = val
	}
	if raw, ok := lookupSetting(settings, "lowrps", "low_rps", "low-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("low_rps: %w", err)
		}
		pattern.LowRPS = val
	}
	if raw, ok := lookupSetting(settings, "multiplier"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("multiplier: %w", err)
		}
		pattern.Multiplier = val
	}
	if raw, ok := lookupSetting(settings, "interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("interval: %w", err)
		}
		pattern.Interval = dur
	}
	if raw, ok := lookupSetting(settings, "width"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("width: %w", err)
		}
		pattern.Width = dur
	}
	return pattern, nil
}

func applyLogSettings(lg *LogConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			lg.Level = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			lg.Format = strings.ToLower(strings.TrimSpace(val))
		}
	}
	return nil
}

func applyTracingSettings(tr *TracingConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tr.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			tr.Protocol = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tr.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tr.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			tr.ServiceName = strings.TrimSpace(val)
		}
	}
	return nil
}
