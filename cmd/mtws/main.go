// mtws - a minimal multi-threaded web server with a worker pool core, an
// ops/metrics API, a built-in load generator, and a terminal dashboard.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/logging"
)

// Build-time variables set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mtws",
	Short: "mtws is a multi-threaded web server with built-in load testing",
	Long: `mtws serves static content over raw TCP sockets through a fixed worker
pool and a bounded task queue, exposes live metrics on a separate ops API,
and ships a load generator, terminal dashboard, and snapshot reports for
observing the server under pressure.

Configuration can be provided via flags, MTWS_ environment variables, or a
configuration file (--config).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, environment, and explicitly-set flags
// for one subcommand invocation.
func loadConfig(cmd *cobra.Command, apply func(*config.Config, *pflag.FlagSet) error) (*config.Config, error) {
	fs := cmd.Flags()
	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := apply(cfg, fs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// printConfigYAML renders the effective configuration for --print-config.
func printConfigYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
