// Package classify maps taxonomy failures to stable error codes, user-facing
// responses, and process exit statuses.
//
// The Catalog is immutable after construction and performs no I/O: the
// contract loader (classify/contracts) hydrates the tables once at startup,
// and every lookup afterwards degrades to the configured fallback instead of
// failing.
package classify

import (
	"errors"
	"strings"

	"footerscan/internal/failures"
)

// ErrorCode is a stable, namespaced identifier joining a failure kind to its
// metadata and exit status. Codes compare case-insensitively; Normalize is
// applied to every key and lookup.
type ErrorCode string

// Normalize returns the canonical (lower-cased, trimmed) form of a code.
func (c ErrorCode) Normalize() ErrorCode {
	return ErrorCode(strings.ToLower(strings.TrimSpace(string(c))))
}

// Metadata describes a known error code.
type Metadata struct {
	Code           ErrorCode
	Transient      bool
	DefaultMessage string
}

// Response is the terminal, user-facing shape of a failure: a stable code, a
// presentable message, and the full diagnostic details. Built only when a
// failure becomes terminal.
type Response struct {
	Code    ErrorCode
	Message string
	Details string
}

// fallbackExitStatus is returned when neither the resolved code nor the
// fallback code appears in the exit-code table.
const fallbackExitStatus = 1

// Catalog holds the four classification tables. Read-only after construction;
// safe for shared use.
type Catalog struct {
	kindToCode map[failures.Kind]ErrorCode
	metadata   map[ErrorCode]Metadata
	exitCodes  map[ErrorCode]int
	fallback   ErrorCode
}

// NewCatalog builds a catalog from finished tables. The maps may be empty but
// not nil, and the fallback code must be non-empty. The fallback code does not
// need an exit-code entry: resolution bottoms out at a fixed status instead.
func NewCatalog(
	kindToCode map[failures.Kind]ErrorCode,
	metadata map[ErrorCode]Metadata,
	exitCodes map[ErrorCode]int,
	fallback ErrorCode,
) (*Catalog, error) {
	if kindToCode == nil {
		return nil, errors.New("kind-to-code table must not be nil")
	}
	if metadata == nil {
		return nil, errors.New("metadata table must not be nil")
	}
	if exitCodes == nil {
		return nil, errors.New("exit-code table must not be nil")
	}
	fallback = fallback.Normalize()
	if fallback == "" {
		return nil, errors.New("fallback error code must not be empty")
	}

	c := &Catalog{
		kindToCode: make(map[failures.Kind]ErrorCode, len(kindToCode)),
		metadata:   make(map[ErrorCode]Metadata, len(metadata)),
		exitCodes:  make(map[ErrorCode]int, len(exitCodes)),
		fallback:   fallback,
	}
	for kind, code := range kindToCode {
		c.kindToCode[kind] = code.Normalize()
	}
	for code, meta := range metadata {
		norm := code.Normalize()
		meta.Code = norm
		c.metadata[norm] = meta
	}
	for code, exit := range exitCodes {
		c.exitCodes[code.Normalize()] = exit
	}
	return c, nil
}

// FallbackCode returns the configured fallback error code.
func (c *Catalog) FallbackCode() ErrorCode { return c.fallback }

// MapFailureToErrorCode resolves err's taxonomy kind to its error code.
// Errors outside the taxonomy, and kinds without a table entry, map to the
// fallback code. Never fails.
func (c *Catalog) MapFailureToErrorCode(err error) ErrorCode {
	f, ok := failures.As(err)
	if !ok {
		return c.fallback
	}
	code, ok := c.kindToCode[f.Kind()]
	if !ok {
		return c.fallback
	}
	return code
}

// metadataFor returns the metadata for a code, synthesizing a non-transient,
// empty-message record for unknown codes so lookups never fail.
func (c *Catalog) metadataFor(code ErrorCode) Metadata {
	code = code.Normalize()
	if meta, ok := c.metadata[code]; ok {
		return meta
	}
	return Metadata{Code: code}
}

// IsTransient reports whether err is classified as likely to succeed on
// retry. Unmapped failures are non-transient.
func (c *Catalog) IsTransient(err error) bool {
	return c.metadataFor(c.MapFailureToErrorCode(err)).Transient
}

// BuildResponse converts a terminal failure into its user-facing response.
// The message prefers the catalog's default message for the code and falls
// back to the failure's own message; the details always carry the full
// diagnostic so debugging context survives the friendly substitution.
func (c *Catalog) BuildResponse(err error) Response {
	code := c.MapFailureToErrorCode(err)
	meta := c.metadataFor(code)

	message := meta.DefaultMessage
	details := err.Error()
	if f, ok := failures.As(err); ok {
		if message == "" {
			message = f.Message()
		}
		details = f.Diagnostic()
	} else if message == "" {
		message = err.Error()
	}

	return Response{Code: code, Message: message, Details: details}
}

// ResolveExitCode maps an error code to a process exit status. Absent codes
// chain through the fallback code's mapping; if that is also absent, a fixed
// status of 1 is returned. Resolution is a pure map lookup: a mapped value is
// honored even when it numerically equals the fallback status.
func (c *Catalog) ResolveExitCode(code ErrorCode) int {
	if exit, ok := c.exitCodes[code.Normalize()]; ok {
		return exit
	}
	if exit, ok := c.exitCodes[c.fallback]; ok {
		return exit
	}
	return fallbackExitStatus
}
