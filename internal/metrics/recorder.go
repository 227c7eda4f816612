// Package metrics exposes run, retry, and failure counters for monitoring.
package metrics

import (
	"time"

	"footerscan/internal/classify"
	"footerscan/internal/failures"
)

// Recorder receives pipeline observations. The Prometheus implementation is
// the production recorder; a nil-safe no-op keeps tests and one-shot runs
// cheap.
type Recorder interface {
	RecordRetry(kind failures.Kind, attempt int, delay time.Duration)
	RecordTerminal(code classify.ErrorCode, exitCode int, attempts int)
	RecordDocument(outcome string)
	RecordRunDuration(d time.Duration)
}

// Noop discards all observations.
type Noop struct{}

func (Noop) RecordRetry(failures.Kind, int, time.Duration) {}
func (Noop) RecordTerminal(classify.ErrorCode, int, int)   {}
func (Noop) RecordDocument(string)                         {}
func (Noop) RecordRunDuration(time.Duration)               {}
