// Package boundary implements the single retry and classification point
// wrapping all pipeline work.
//
// Every fallible operation of a run is invoked through Executor.Execute. The
// unit of work never recovers locally: underlying failures propagate here
// unmodified, are classified through the catalog, retried under the policy
// while transient, and finally converted into a process exit status. The
// boundary never re-raises past itself.
package boundary

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"footerscan/internal/classify"
	"footerscan/internal/failures"
	"footerscan/internal/logfields"
	"footerscan/internal/retry"
)

// UnitOfWork is a single top-level operation: it either returns an exit
// status or fails with a taxonomy failure (or an error convertible to one by
// classification fallback).
type UnitOfWork func() (int, error)

// Waiter blocks for the requested backoff delay. Injectable so tests can
// substitute a zero-cost waiter and assert on requested durations.
type Waiter interface {
	Wait(d time.Duration)
}

// SleepWaiter blocks with time.Sleep. This is the only blocking point in the
// whole process.
type SleepWaiter struct{}

func (SleepWaiter) Wait(d time.Duration) { time.Sleep(d) }

// Recorder receives retry and terminal-failure observations. Implemented by
// internal/metrics; a nil recorder disables recording.
type Recorder interface {
	RecordRetry(kind failures.Kind, attempt int, delay time.Duration)
	RecordTerminal(code classify.ErrorCode, exitCode int, attempts int)
}

// Executor is the execution boundary. The catalog and policy are read-only;
// the only mutable state is the per-Execute attempt counter, so a single
// Executor may serve sequential calls but concurrent invocation is not a
// supported usage.
type Executor struct {
	catalog  *classify.Catalog
	policy   retry.Policy
	waiter   Waiter
	recorder Recorder
	logger   *slog.Logger
}

// NewExecutor builds an executor. waiter, recorder, and logger may be nil;
// nil defaults to a real sleep, no recording, and slog.Default respectively.
func NewExecutor(catalog *classify.Catalog, policy retry.Policy, waiter Waiter, recorder Recorder, logger *slog.Logger) (*Executor, error) {
	if catalog == nil {
		return nil, errors.New("executor requires a catalog")
	}
	if waiter == nil {
		waiter = SleepWaiter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		catalog:  catalog,
		policy:   policy,
		waiter:   waiter,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Execute invokes work, retrying transient failures under the policy and
// converting the terminal failure, if any, into an exit status. Success
// short-circuits: the work's own status is returned untouched. Attempts are
// strictly sequential; the attempt index is 0-based.
func (e *Executor) Execute(work UnitOfWork) int {
	for attempt := 0; ; attempt++ {
		status, err := work()
		if err == nil {
			return status
		}

		transient := e.catalog.IsTransient(err)
		if transient && e.policy.ShouldRetry(attempt) {
			delay := e.policy.Delay(attempt)
			e.logRetry(err, attempt, delay)
			if e.recorder != nil {
				e.recorder.RecordRetry(kindOf(err), attempt, delay)
			}
			e.waiter.Wait(delay)
			continue
		}

		resp := e.catalog.BuildResponse(err)
		exit := e.catalog.ResolveExitCode(resp.Code)
		e.logTerminal(err, resp, exit, attempt)
		if e.recorder != nil {
			e.recorder.RecordTerminal(resp.Code, exit, attempt+1)
		}
		return exit
	}
}

func (e *Executor) logRetry(err error, attempt int, delay time.Duration) {
	e.logger.LogAttrs(context.Background(), slog.LevelWarn, "Transient failure, scheduling retry",
		logfields.Kind(string(kindOf(err))),
		logfields.Attempt(attempt),
		logfields.DelayMS(delay),
		logfields.Error(err),
	)
}

func (e *Executor) logTerminal(err error, resp classify.Response, exit, attempt int) {
	e.logger.LogAttrs(context.Background(), slog.LevelError, "Terminal failure",
		logfields.Kind(string(kindOf(err))),
		logfields.Attempt(attempt),
		logfields.ErrorCode(string(resp.Code)),
		logfields.ExitCode(exit),
		logfields.Error(err),
	)
}

// kindOf extracts the taxonomy kind, or an empty kind for errors outside the
// taxonomy (which classification treats as unmapped anyway).
func kindOf(err error) failures.Kind {
	if f, ok := failures.As(err); ok {
		return f.Kind()
	}
	return ""
}
