// Package daemon runs footerscan continuously: batch runs are triggered by
// input-directory changes (debounced) and optionally on a fixed schedule,
// with Prometheus metrics served over HTTP.
//
// Each triggered run goes through the same execution boundary as a one-shot
// `footerscan process`; runs are strictly sequential, never overlapping.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"footerscan/internal/config"
	"footerscan/internal/logfields"
	"footerscan/internal/metrics"
)

// Runner executes one batch run and returns its exit status. Supplied by the
// command layer; already wrapped in the execution boundary.
type Runner func() int

// Daemon coordinates the triggers and the metrics endpoint.
type Daemon struct {
	cfg     *config.Config
	runner  Runner
	watcher *Watcher
	sched   *Scheduler
	server  *http.Server

	trigger chan string
}

// New builds a daemon around a runner. The Prometheus registry may be nil
// when metrics are disabled.
func New(cfg *config.Config, runner Runner, registry *prom.Registry) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a configuration")
	}
	if runner == nil {
		return nil, errors.New("daemon requires a runner")
	}

	d := &Daemon{
		cfg:     cfg,
		runner:  runner,
		trigger: make(chan string, 1),
	}

	if cfg.Daemon.Watch {
		w, err := NewWatcher(cfg.Input.Directory, cfg.Daemon.Debounce.Std(), d.requestRun)
		if err != nil {
			return nil, fmt.Errorf("create input watcher: %w", err)
		}
		d.watcher = w
	}

	if interval := cfg.Daemon.Interval.Std(); interval > 0 {
		s, err := NewScheduler(interval, func() { d.requestRun("schedule") })
		if err != nil {
			return nil, fmt.Errorf("create scheduler: %w", err)
		}
		d.sched = s
	}

	if registry != nil && cfg.Daemon.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
		d.server = &http.Server{Addr: cfg.Daemon.MetricsAddr, Handler: mux}
	}

	return d, nil
}

// requestRun coalesces triggers: a run already pending absorbs new requests.
func (d *Daemon) requestRun(reason string) {
	select {
	case d.trigger <- reason:
	default:
	}
}

// Start runs the daemon until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}
	if d.sched != nil {
		d.sched.Start()
	}
	if d.server != nil {
		go func() {
			slog.Info("Serving metrics", "addr", d.server.Addr)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	slog.Info("Daemon started",
		slog.Bool("watch", d.watcher != nil),
		slog.Bool("schedule", d.sched != nil))

	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-d.trigger:
			slog.Info("Batch run triggered", slog.String("reason", reason))
			status := d.runner()
			if status != 0 {
				slog.Warn("Batch run finished with failure status", logfields.ExitCode(status))
			} else {
				slog.Info("Batch run finished", logfields.ExitCode(status))
			}
		}
	}
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.sched != nil {
		if err := d.sched.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
