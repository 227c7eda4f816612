package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID     = "run_id"
	KeyDocument  = "document"
	KeyStage     = "stage"
	KeyAttempt   = "attempt"
	KeyDelayMS   = "delay_ms"
	KeyKind      = "failure_kind"
	KeyErrorCode = "error_code"
	KeyExitCode  = "exit_code"
	KeyError     = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr    { return slog.String(KeyRunID, id) }
func Document(d string) slog.Attr  { return slog.String(KeyDocument, d) }
func Stage(name string) slog.Attr  { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr      { return slog.Int(KeyAttempt, n) }
func Kind(k string) slog.Attr      { return slog.String(KeyKind, k) }
func ErrorCode(c string) slog.Attr { return slog.String(KeyErrorCode, c) }
func ExitCode(c int) slog.Attr     { return slog.Int(KeyExitCode, c) }
func DelayMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDelayMS, float64(d)/float64(time.Millisecond))
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
