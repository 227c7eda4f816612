// Package retry provides the deterministic backoff policy used by the
// execution boundary.
package retry

import (
	"fmt"
	"math"
	"time"
)

// maxDelay is the largest representable duration; computed delays clamp here
// instead of overflowing.
const maxDelay = time.Duration(math.MaxInt64)

// Policy encapsulates bounded exponential backoff for transient failures.
// It is immutable after construction. Transience is not the policy's concern:
// it only bounds the attempt count and spaces the waits; the execution
// boundary combines transience with the bound.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
}

// NewPolicy builds a policy. Negative values are rejected; zero values are
// legal (maxRetries=0 disables retries, baseDelay=0 retries without waiting).
func NewPolicy(maxRetries int, baseDelay time.Duration) (Policy, error) {
	if maxRetries < 0 {
		return Policy{}, fmt.Errorf("max retries cannot be negative: %d", maxRetries)
	}
	if baseDelay < 0 {
		return Policy{}, fmt.Errorf("base delay cannot be negative: %v", baseDelay)
	}
	return Policy{maxRetries: maxRetries, baseDelay: baseDelay}, nil
}

// DefaultPolicy returns the baseline policy (3 retries, 1s base delay).
func DefaultPolicy() Policy {
	return Policy{maxRetries: 3, baseDelay: time.Second}
}

// MaxRetries returns the configured attempt bound.
func (p Policy) MaxRetries() int { return p.maxRetries }

// BaseDelay returns the configured base delay.
func (p Policy) BaseDelay() time.Duration { return p.baseDelay }

// ShouldRetry reports whether another attempt is allowed after the failure of
// the given 0-based attempt.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.maxRetries
}

// Delay returns baseDelay * 2^attempt for the given 0-based attempt index,
// clamped to the maximum representable duration on overflow. The delay before
// the first retry uses exponent 0.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 || p.baseDelay == 0 {
		return 0
	}
	shift := uint(attempt)
	if shift >= 63 {
		return maxDelay
	}
	d := p.baseDelay << shift
	if d < 0 || d>>shift != p.baseDelay {
		return maxDelay
	}
	return d
}
