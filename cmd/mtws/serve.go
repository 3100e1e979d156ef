package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/cache"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/config"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/handler"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/metrics"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/pool"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/server"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/session"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/snapshot"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server, worker pool, and ops API",
	Long: `Run the core server: a raw TCP listener feeding a bounded task queue
drained by a fixed worker pool, with an in-memory response cache, per-IP
sessions, and a separate ops API serving metrics, a WebSocket feed, and the
cache toggle. With --snapshot-dir set, the metrics payload is also persisted
periodically for later reporting.`,
	Example: `  # Defaults: 10 workers, queue of 64, static/ as document root
  mtws serve

  # Small pool with a snapshot trail
  mtws serve -w 2 -q 8 --snapshot-dir ./snapshots

  # From a config file, overriding one value
  mtws serve --config mtws.yaml --listen 0.0.0.0:8081`,
	RunE: runServe,
}

func init() {
	config.RegisterCommonFlags(serveCmd.Flags())
	config.RegisterServeFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, config.ApplyServeFlagOverrides)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
		return printConfigYAML(cfg)
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("trace provider shutdown failed", "error", err)
		}
	}()

	agg := metrics.NewAggregator(cfg.Server.PoolSize)
	agg.SetCacheEnabled(cfg.Server.CacheEnabled)
	store := cache.New(cfg.Server.CacheEnabled)
	sessions := session.NewRegistry()

	queue := pool.NewQueue(cfg.Server.QueueCapacity)
	h := handler.New(handler.Options{
		StaticRoot:      cfg.Server.StaticRoot,
		Cache:           store,
		Sessions:        sessions,
		Metrics:         agg,
		ReadTimeout:     cfg.Server.ReadTimeout,
		SimulateLatency: cfg.Server.SimulateLatency,
		Tracer:          provider.Tracer(),
		Logger:          log,
	})
	workers := pool.New(cfg.Server.PoolSize, queue, h.Handle)

	srv := server.New(server.Options{
		Addr:    cfg.Server.Listen,
		Queue:   queue,
		Pool:    workers,
		Metrics: agg,
		Logger:  log,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	ops := api.New(api.Options{
		Addr:           cfg.Server.OpsListen,
		Metrics:        agg,
		Sessions:       sessions,
		Cache:          store,
		StreamInterval: cfg.Server.StreamInterval,
		Logger:         log,
	})
	if err := ops.Start(); err != nil {
		_ = srv.Shutdown(cfg.Server.ShutdownGrace)
		return err
	}

	var snaps *snapshot.Store
	snapDone := make(chan struct{})
	if cfg.Server.SnapshotDir != "" {
		snaps, err = snapshot.NewStore(cfg.Server.SnapshotDir)
		if err != nil {
			_ = ops.Shutdown(context.Background())
			_ = srv.Shutdown(cfg.Server.ShutdownGrace)
			return err
		}
		go runSnapshotLoop(ctx, snaps, agg, sessions, cfg.Server.SnapshotInterval, log, snapDone)
	} else {
		close(snapDone)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	stop()

	shutdownErr := srv.Shutdown(cfg.Server.ShutdownGrace)
	<-snapDone
	if snaps != nil {
		if _, err := snaps.Write(api.BuildPayload(agg, sessions)); err != nil {
			log.Warn("final snapshot failed", "error", err)
		}
	}

	opsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ops.Shutdown(opsCtx); err != nil {
		log.Warn("ops shutdown failed", "error", err)
	}

	// A drain timeout is degraded but not fatal; the straggler report was
	// already logged by the server.
	if shutdownErr != nil && !errors.Is(shutdownErr, pool.ErrShutdownTimeout) {
		return shutdownErr
	}
	return nil
}

// runSnapshotLoop persists the metrics payload on a fixed interval until the
// context ends.
func runSnapshotLoop(ctx context.Context, snaps *snapshot.Store, agg *metrics.Aggregator, sessions *session.Registry, interval time.Duration, log *slog.Logger, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			name, err := snaps.Write(api.BuildPayload(agg, sessions))
			if err != nil {
				log.Warn("snapshot write failed", "error", err)
				continue
			}
			log.Debug("snapshot written", "file", name)
		}
	}
}
