package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied before file, environment, and flag layers.
const (
	DefaultListen           = "127.0.0.1:8081"
	DefaultOpsListen        = "127.0.0.1:9090"
	DefaultStaticRoot       = "static"
	DefaultPoolSize         = 10
	DefaultQueueCapacity    = 64
	DefaultShutdownGrace    = 10 * time.Second
	DefaultReadTimeout      = 10 * time.Second
	DefaultSnapshotInterval = 10 * time.Second
)

// Config is the single configuration model shared by every subcommand.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Loadtest LoadtestConfig `mapstructure:"loadtest" yaml:"loadtest"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`

	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// ServerConfig configures the core listener, worker pool, and ops surface.
type ServerConfig struct {
	Listen           string        `mapstructure:"listen" yaml:"listen"`
	OpsListen        string        `mapstructure:"ops_listen" yaml:"ops_listen"`
	StaticRoot       string        `mapstructure:"static_root" yaml:"static_root"`
	PoolSize         int           `mapstructure:"pool_size" yaml:"pool_size"`
	QueueCapacity    int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	SimulateLatency  bool          `mapstructure:"simulate_latency" yaml:"simulate_latency"`
	CacheEnabled     bool          `mapstructure:"cache_enabled" yaml:"cache_enabled"`
	SnapshotDir      string        `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`
	StreamInterval   time.Duration `mapstructure:"stream_interval" yaml:"stream_interval"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type LoadPatternType string

const (
	LoadPatternTypeContinuous LoadPatternType = "continuous"
	LoadPatternTypeRamp       LoadPatternType = "ramp"
	LoadPatternTypeBurst      LoadPatternType = "burst"
	LoadPatternTypeSpike      LoadPatternType = "spike"
)

// LoadPattern describes one segment of the traffic shape. Which fields are
// meaningful depends on Type; Validate enforces the per-type requirements.
type LoadPattern struct {
	Name       string          `mapstructure:"name" yaml:"name"`
	Type       LoadPatternType `mapstructure:"type" yaml:"type"`
	RPS        int             `mapstructure:"rps" yaml:"rps"`
	FromRPS    int             `mapstructure:"from_rps" yaml:"from_rps"`
	ToRPS      int             `mapstructure:"to_rps" yaml:"to_rps"`
	Duration   time.Duration   `mapstructure:"duration" yaml:"duration"`
	Period     time.Duration   `mapstructure:"period" yaml:"period"`
	Duty       float64         `mapstructure:"duty" yaml:"duty"`
	LowRPS     int             `mapstructure:"low_rps" yaml:"low_rps"`
	Multiplier float64         `mapstructure:"multiplier" yaml:"multiplier"`
	Interval   time.Duration   `mapstructure:"interval" yaml:"interval"`
	Width      time.Duration   `mapstructure:"width" yaml:"width"`
}

// LoadtestConfig configures the traffic generator.
type LoadtestConfig struct {
	URL         string            `mapstructure:"url" yaml:"url"`
	Paths       []string          `mapstructure:"paths" yaml:"paths"`
	FeederCSV   string            `mapstructure:"feeder_csv" yaml:"feeder_csv"`
	HARFile     string            `mapstructure:"har_file" yaml:"har_file"`
	HARFilter   string            `mapstructure:"har_filter" yaml:"har_filter"`
	Concurrency int               `mapstructure:"concurrency" yaml:"concurrency"`
	Total       int               `mapstructure:"total" yaml:"total"`
	Duration    time.Duration     `mapstructure:"duration" yaml:"duration"`
	Rate        int               `mapstructure:"rate" yaml:"rate"`
	Arrival     ArrivalModel      `mapstructure:"arrival" yaml:"arrival"`
	Seed        int64             `mapstructure:"seed" yaml:"seed"`
	Patterns    []LoadPattern     `mapstructure:"patterns" yaml:"patterns"`
	Timeout     time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Headers     map[string]string `mapstructure:"headers" yaml:"headers"`
	Retries     int               `mapstructure:"retries" yaml:"retries"`
	RetryBase   time.Duration     `mapstructure:"retry_base" yaml:"retry_base"`
	RetryMax    time.Duration     `mapstructure:"retry_max" yaml:"retry_max"`
	Thresholds  []string          `mapstructure:"thresholds" yaml:"thresholds"`
	Output      string            `mapstructure:"output" yaml:"output"`
	Format      string            `mapstructure:"format" yaml:"format"`
	LogErrors   bool              `mapstructure:"log_errors" yaml:"log_errors"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig configures the optional OTLP trace export. Tracing is
// considered enabled when an endpoint is set (or supplied via the standard
// OTEL environment variables, which the provider consults itself).
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// Enabled reports whether an export endpoint was configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:           DefaultListen,
			OpsListen:        DefaultOpsListen,
			StaticRoot:       DefaultStaticRoot,
			PoolSize:         DefaultPoolSize,
			QueueCapacity:    DefaultQueueCapacity,
			ShutdownGrace:    DefaultShutdownGrace,
			ReadTimeout:      DefaultReadTimeout,
			CacheEnabled:     true,
			SnapshotInterval: DefaultSnapshotInterval,
			StreamInterval:   time.Second,
		},
		Loadtest: LoadtestConfig{
			Concurrency: 1,
			Timeout:     30 * time.Second,
			Arrival:     ArrivalModelUniform,
			Headers:     map[string]string{},
			RetryBase:   100 * time.Millisecond,
			RetryMax:    2 * time.Second,
			Format:      "text",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Protocol:    "grpc",
			SampleRate:  1.0,
			ServiceName: "mtws",
		},
	}
}

// ValidationError reports every configuration problem found, not just the
// first one.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// ValidateServe checks the sections the serve subcommand uses.
func (c Config) ValidateServe() error {
	var issues []string

	if strings.TrimSpace(c.Server.Listen) == "" {
		issues = append(issues, "server.listen is required")
	}
	if strings.TrimSpace(c.Server.OpsListen) == "" {
		issues = append(issues, "server.ops_listen is required")
	}
	if c.Server.PoolSize < 1 {
		issues = append(issues, "server.pool_size must be >= 1")
	}
	if c.Server.QueueCapacity < 1 {
		issues = append(issues, "server.queue_capacity must be >= 1")
	}
	if c.Server.ShutdownGrace < 0 {
		issues = append(issues, "server.shutdown_grace must be >= 0")
	}
	if c.Server.ReadTimeout < 0 {
		issues = append(issues, "server.read_timeout must be >= 0")
	}
	if c.Server.SnapshotInterval <= 0 {
		issues = append(issues, "server.snapshot_interval must be > 0")
	}
	if c.Server.StreamInterval <= 0 {
		issues = append(issues, "server.stream_interval must be > 0")
	}

	issues = append(issues, validateLog(c.Log)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// ValidateLoadtest checks the sections the loadtest subcommand uses.
func (c Config) ValidateLoadtest() error {
	var issues []string
	lt := c.Loadtest

	if strings.TrimSpace(lt.URL) == "" && strings.TrimSpace(lt.HARFile) == "" {
		issues = append(issues, "loadtest.url is required unless a HAR file supplies targets")
	}
	if lt.Concurrency < 1 {
		issues = append(issues, "loadtest.concurrency must be >= 1")
	}
	if lt.Total < 0 {
		issues = append(issues, "loadtest.total must be >= 0")
	}
	if lt.Duration < 0 {
		issues = append(issues, "loadtest.duration must be >= 0")
	}
	if lt.Rate < 0 {
		issues = append(issues, "loadtest.rate must be >= 0")
	}
	if lt.Timeout < 0 {
		issues = append(issues, "loadtest.timeout must be >= 0")
	}
	if lt.Retries < 0 {
		issues = append(issues, "loadtest.retries must be >= 0")
	}
	if lt.RetryBase < 0 {
		issues = append(issues, "loadtest.retry_base must be >= 0")
	}
	if lt.RetryMax < 0 {
		issues = append(issues, "loadtest.retry_max must be >= 0")
	}

	switch lt.Arrival {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("loadtest.arrival model %q is not supported", lt.Arrival))
	}

	switch strings.ToLower(strings.TrimSpace(lt.Format)) {
	case "", "text", "json", "html":
	default:
		issues = append(issues, fmt.Sprintf("loadtest.format must be text, json, or html, got %q", lt.Format))
	}

	issues = append(issues, validatePatterns(lt.Patterns)...)
	issues = append(issues, validateLog(c.Log)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validatePatterns(patterns []LoadPattern) []string {
	var issues []string
	for idx, p := range patterns {
		typeLabel := strings.TrimSpace(string(p.Type))
		if typeLabel == "" {
			issues = append(issues, fmt.Sprintf("patterns[%d]: type is required", idx))
			continue
		}
		switch LoadPatternType(strings.ToLower(typeLabel)) {
		case LoadPatternTypeContinuous:
			if p.RPS <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: rps must be > 0 for continuous", idx))
			}
			if p.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: duration must be > 0 for continuous", idx))
			}
		case LoadPatternTypeRamp:
			if p.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: duration must be > 0 for ramp", idx))
			}
			if p.FromRPS < 0 || p.ToRPS < 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: from_rps and to_rps must be >= 0", idx))
			}
		case LoadPatternTypeBurst:
			if p.RPS <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: rps must be > 0 for burst", idx))
			}
			if p.LowRPS < 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: low_rps must be >= 0", idx))
			}
			if p.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: duration must be > 0 for burst", idx))
			}
			if p.Period <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: period must be > 0 for burst", idx))
			}
			if p.Duty <= 0 || p.Duty >= 1 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: duty must be in (0, 1) for burst", idx))
			}
		case LoadPatternTypeSpike:
			if p.RPS <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: rps must be > 0 for spike", idx))
			}
			if p.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: duration must be > 0 for spike", idx))
			}
			if p.Multiplier <= 1 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: multiplier must be > 1 for spike", idx))
			}
			if p.Interval <= 0 {
				issues = append(issues, fmt.Sprintf("patterns[%d]: interval must be > 0 for spike", idx))
			}
			if p.Width <= 0 || p.Width >= p.Interval {
				issues = append(issues, fmt.Sprintf("patterns[%d]: width must be in (0, interval) for spike", idx))
			}
		default:
			issues = append(issues, fmt.Sprintf("patterns[%d]: unsupported type %q", idx, p.Type))
		}
	}
	return issues
}

func validateLog(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log.level must be debug, info, warn, or error, got %q", l.Level))
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be text or json, got %q", l.Format))
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	if !t.Enabled() {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be in [0, 1]")
	}
	return issues
}
