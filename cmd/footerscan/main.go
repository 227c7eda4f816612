package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"footerscan/internal/boundary"
	"footerscan/internal/classify"
	"footerscan/internal/classify/contracts"
	"footerscan/internal/config"
	"footerscan/internal/daemon"
	"footerscan/internal/logfields"
	"footerscan/internal/metrics"
	"footerscan/internal/observability"
	"footerscan/internal/ocr"
	"footerscan/internal/pipeline"
	"footerscan/internal/retry"
	"footerscan/internal/runlog"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Process struct{} `cmd:"" help:"Run one batch over the configured input directory"`

	Init struct {
		Force bool `help:"Overwrite existing files"`
	} `cmd:"" help:"Initialize example configuration and classification contracts"`

	Daemon struct{} `cmd:"" help:"Run continuously, triggering batches on input changes and on schedule"`

	Contracts struct {
		Validate struct {
			Path string `arg:"" optional:"" help:"Contract document to validate (defaults to the configured path)"`
		} `cmd:"" help:"Load and validate a classification contract document"`
	} `cmd:"" help:"Classification contract utilities"`
}

func main() {
	ctx := kong.Parse(&CLI)
	observability.Setup(CLI.Verbose)

	var status int
	switch ctx.Command() {
	case "process":
		status = runProcess()
	case "init":
		status = runInit()
	case "daemon":
		status = runDaemon()
	case "contracts validate", "contracts validate <path>":
		status = runContractsValidate()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", ctx.Command())
		status = 2
	}
	os.Exit(status)
}

// startupError reports a failure that happens before the execution boundary
// exists (configuration or catalog construction). These always exit 1.
func startupError(msg string, err error) int {
	slog.Error(msg, logfields.Error(err))
	return 1
}

func loadCatalog(cfg *config.Config) (*classify.Catalog, error) {
	if cfg.Contracts.Path == "" {
		return contracts.Hydrate(contracts.Default())
	}
	return contracts.Load(cfg.Contracts.Path)
}

// buildRun assembles the boundary-wrapped batch run shared by process and
// daemon modes. It returns a runner executing one complete run.
func buildRun(cfg *config.Config, registry *prom.Registry) (func(context.Context) int, func(), error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load classification contracts: %w", err)
	}

	policy, err := retry.NewPolicy(cfg.Retry.Retries(), cfg.Retry.BaseDelay.Std())
	if err != nil {
		return nil, nil, fmt.Errorf("build retry policy: %w", err)
	}

	client, err := ocr.NewClient(cfg.OCR.URL, cfg.OCR.Timeout.Std())
	if err != nil {
		return nil, nil, fmt.Errorf("build ocr client: %w", err)
	}

	var store *runlog.Store
	cleanup := func() {}
	if cfg.Runlog.Path != "" {
		store, err = runlog.NewStore(cfg.Runlog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open runlog: %w", err)
		}
		cleanup = func() { _ = store.Close() }
	}

	recorder := metrics.NewPrometheusRecorder(registry)

	run := func(ctx context.Context) int {
		runID := uuid.NewString()
		runCtx := observability.WithRunID(ctx, runID)

		p, err := pipeline.New(cfg, client, catalog, store, recorder)
		if err != nil {
			return startupError("Failed to build pipeline", err)
		}
		exec, err := boundary.NewExecutor(catalog, policy, nil, recorder, slog.Default())
		if err != nil {
			return startupError("Failed to build executor", err)
		}

		if store != nil {
			if err := store.BeginRun(runCtx, runID); err != nil {
				observability.WarnContext(runCtx, "Failed to record run start", logfields.Error(err))
			}
		}

		observability.InfoContext(runCtx, "Run starting", logfields.RunID(runID))
		status := exec.Execute(p.UnitOfWork(runCtx, runID))
		observability.InfoContext(runCtx, "Run finished", logfields.ExitCode(status))

		if store != nil {
			if err := store.FinishRun(runCtx, runID, status); err != nil {
				observability.WarnContext(runCtx, "Failed to record run end", logfields.Error(err))
			}
		}
		return status
	}
	return run, cleanup, nil
}

func runProcess() int {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return startupError("Failed to load configuration", err)
	}

	run, cleanup, err := buildRun(cfg, prom.NewRegistry())
	if err != nil {
		return startupError("Failed to assemble run", err)
	}
	defer cleanup()

	return run(context.Background())
}

func runInit() int {
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		return startupError("Failed to write configuration", err)
	}
	slog.Info("Wrote example configuration", "path", CLI.Config)

	if err := contracts.WriteExample("contracts.yaml", CLI.Init.Force); err != nil {
		return startupError("Failed to write contract document", err)
	}
	slog.Info("Wrote example classification contracts", "path", "contracts.yaml")
	return 0
}

func runDaemon() int {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return startupError("Failed to load configuration", err)
	}

	registry := prom.NewRegistry()
	run, cleanup, err := buildRun(cfg, registry)
	if err != nil {
		return startupError("Failed to assemble run", err)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, func() int { return run(ctx) }, registry)
	if err != nil {
		return startupError("Failed to create daemon", err)
	}

	errChan := make(chan error, 1)
	go func() { errChan <- d.Start(ctx) }()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return startupError("Daemon failed", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return startupError("Failed to stop daemon", err)
	}

	slog.Info("Daemon stopped")
	return 0
}

func runContractsValidate() int {
	path := CLI.Contracts.Validate.Path
	if path == "" {
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			return startupError("Failed to load configuration", err)
		}
		path = cfg.Contracts.Path
	}
	if path == "" {
		slog.Error("No contract document configured; pass a path or set contracts.path")
		return 2
	}

	catalog, err := contracts.Load(path)
	if err != nil {
		return startupError("Contract document is invalid", err)
	}

	slog.Info("Contract document is valid",
		"path", path,
		"fallback_code", string(catalog.FallbackCode()))
	return 0
}
