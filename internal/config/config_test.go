package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mtws.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	if cfg.Server.Listen != config.DefaultListen {
		t.Fatalf("listen default: got %q", cfg.Server.Listen)
	}
	if cfg.Server.PoolSize != config.DefaultPoolSize {
		t.Fatalf("pool size default: got %d", cfg.Server.PoolSize)
	}
	if !cfg.Server.CacheEnabled {
		t.Fatal("cache should default to enabled")
	}
	if cfg.Loadtest.Concurrency != 1 {
		t.Fatalf("concurrency default: got %d", cfg.Loadtest.Concurrency)
	}
	if cfg.Loadtest.Arrival != config.ArrivalModelUniform {
		t.Fatalf("arrival default: got %q", cfg.Loadtest.Arrival)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults: got %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Tracing.Enabled() {
		t.Fatal("tracing should default to disabled")
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:8085"
  pool_size: 4
  queue_capacity: 32
  simulate_latency: true
log:
  level: debug
loadtest:
  url: "http://localhost:8085"
  concurrency: 8
  duration: 30s
  patterns:
    - type: ramp
      from_rps: 10
      to_rps: 100
      duration: 20s
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:8085" {
		t.Fatalf("listen: got %q", cfg.Server.Listen)
	}
	if cfg.Server.PoolSize != 4 || cfg.Server.QueueCapacity != 32 {
		t.Fatalf("pool/queue: got %d/%d", cfg.Server.PoolSize, cfg.Server.QueueCapacity)
	}
	if !cfg.Server.SimulateLatency {
		t.Fatal("simulate_latency should be set")
	}
	// Untouched keys keep their defaults.
	if cfg.Server.OpsListen != config.DefaultOpsListen {
		t.Fatalf("ops_listen should keep its default, got %q", cfg.Server.OpsListen)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level: got %q", cfg.Log.Level)
	}
	if cfg.Loadtest.Duration != 30*time.Second {
		t.Fatalf("duration: got %s", cfg.Loadtest.Duration)
	}
	if len(cfg.Loadtest.Patterns) != 1 {
		t.Fatalf("patterns: got %d", len(cfg.Loadtest.Patterns))
	}
	p := cfg.Loadtest.Patterns[0]
	if p.Type != config.LoadPatternTypeRamp || p.FromRPS != 10 || p.ToRPS != 100 || p.Duration != 20*time.Second {
		t.Fatalf("ramp pattern mismatch: %+v", p)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  pool_size: 4
`)
	t.Setenv("MTWS_SERVER_POOL_SIZE", "16")
	t.Setenv("MTWS_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("MTWS_LOG_LEVEL", "warn")
	t.Setenv("MTWS_LOADTEST_RETRY_BASE", "250ms")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.PoolSize != 16 {
		t.Fatalf("env should beat the file, got pool_size %d", cfg.Server.PoolSize)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Fatalf("read_timeout: got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level: got %q", cfg.Log.Level)
	}
	if cfg.Loadtest.RetryBase != 250*time.Millisecond {
		t.Fatalf("retry_base: got %s", cfg.Loadtest.RetryBase)
	}
}

func TestEnvRejectsBadValue(t *testing.T) {
	t.Setenv("MTWS_SERVER_POOL_SIZE", "lots")
	if _, err := config.Load(""); err == nil {
		t.Fatal("expected an error for a non-numeric pool size")
	}
}

func TestFlagOverridesOnlyWhenChanged(t *testing.T) {
	cfg := config.Default()
	cfg.Server.PoolSize = 6 // pretend the file set this

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	config.RegisterCommonFlags(fs)
	config.RegisterServeFlags(fs)
	if err := fs.Parse([]string{"--queue-capacity", "128"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := config.ApplyServeFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Server.QueueCapacity != 128 {
		t.Fatalf("explicit flag should win, got %d", cfg.Server.QueueCapacity)
	}
	if cfg.Server.PoolSize != 6 {
		t.Fatalf("untouched flag must not clobber, got %d", cfg.Server.PoolSize)
	}
}

func TestLoadtestFlagHeaders(t *testing.T) {
	cfg := config.Default()
	fs := pflag.NewFlagSet("loadtest", pflag.ContinueOnError)
	config.RegisterCommonFlags(fs)
	config.RegisterLoadtestFlags(fs)
	if err := fs.Parse([]string{
		"--url", "http://localhost:8081",
		"--header", "x-api-key=secret",
		"--header", "accept=application/json",
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := config.ApplyLoadtestFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Loadtest.URL != "http://localhost:8081" {
		t.Fatalf("url: got %q", cfg.Loadtest.URL)
	}
	if got := cfg.Loadtest.Headers["X-Api-Key"]; got != "secret" {
		t.Fatalf("header should be canonicalized, got %q", got)
	}
	if got := cfg.Loadtest.Headers["Accept"]; got != "application/json" {
		t.Fatalf("accept header: got %q", got)
	}
}

func TestValidateServeCollectsAllIssues(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Listen = ""
	cfg.Server.PoolSize = 0
	cfg.Server.QueueCapacity = -1
	cfg.Log.Level = "chatty"

	err := cfg.ValidateServe()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Issues()) != 4 {
		t.Fatalf("expected 4 issues, got %d: %v", len(verr.Issues()), verr.Issues())
	}
}

func TestValidateLoadtestRequiresTarget(t *testing.T) {
	cfg := config.Default()
	err := cfg.ValidateLoadtest()
	if err == nil {
		t.Fatal("expected failure without url or har file")
	}
	if !strings.Contains(err.Error(), "loadtest.url") {
		t.Fatalf("unexpected message: %v", err)
	}

	cfg.Loadtest.HARFile = "capture.har"
	if err := cfg.ValidateLoadtest(); err != nil {
		t.Fatalf("a har file should satisfy the target requirement: %v", err)
	}
}

func TestValidatePatterns(t *testing.T) {
	cases := []struct {
		name    string
		pattern config.LoadPattern
		ok      bool
	}{
		{"continuous ok", config.LoadPattern{Type: "continuous", RPS: 50, Duration: time.Minute}, true},
		{"continuous no rps", config.LoadPattern{Type: "continuous", Duration: time.Minute}, false},
		{"ramp ok", config.LoadPattern{Type: "ramp", FromRPS: 0, ToRPS: 100, Duration: time.Minute}, true},
		{"ramp no duration", config.LoadPattern{Type: "ramp", FromRPS: 0, ToRPS: 100}, false},
		{"burst ok", config.LoadPattern{Type: "burst", RPS: 100, LowRPS: 10, Duration: time.Minute, Period: 10 * time.Second, Duty: 0.3}, true},
		{"burst bad duty", config.LoadPattern{Type: "burst", RPS: 100, Duration: time.Minute, Period: 10 * time.Second, Duty: 1.5}, false},
		{"spike ok", config.LoadPattern{Type: "spike", RPS: 50, Duration: time.Minute, Multiplier: 4, Interval: 20 * time.Second, Width: 2 * time.Second}, true},
		{"spike width too wide", config.LoadPattern{Type: "spike", RPS: 50, Duration: time.Minute, Multiplier: 4, Interval: 20 * time.Second, Width: 30 * time.Second}, false},
		{"unknown type", config.LoadPattern{Type: "sawtooth", RPS: 50, Duration: time.Minute}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Loadtest.URL = "http://localhost:8081"
			cfg.Loadtest.Patterns = []config.LoadPattern{tc.pattern}
			err := cfg.ValidateLoadtest()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}

func TestValidateTracingOnlyWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.SampleRate = 7 // ignored while no endpoint is set
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("disabled tracing must not be validated: %v", err)
	}

	cfg.Tracing.Endpoint = "localhost:4317"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("expected sample rate validation once tracing is enabled")
	}
}
