package failures

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a member of the failure taxonomy. The set is closed: the
// classification tables key on these values, so new kinds require a matching
// contract entry.
type Kind string

const (
	KindFileAccess        Kind = "file_access"
	KindContentProcessing Kind = "content_processing"
	KindNetworkConnection Kind = "network_connection"
	KindOperationTimeout  Kind = "operation_timeout"
	KindSerialization     Kind = "serialization"
	KindInvalidConfig     Kind = "invalid_configuration"
)

// Kinds returns every taxonomy member, in a stable order. Used by the
// contract loader to validate kind mappings.
func Kinds() []Kind {
	return []Kind{
		KindFileAccess,
		KindContentProcessing,
		KindNetworkConnection,
		KindOperationTimeout,
		KindSerialization,
		KindInvalidConfig,
	}
}

// KnownKind reports whether s names a taxonomy member.
func KnownKind(s string) bool {
	for _, k := range Kinds() {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Failure is a tagged failure value. The tag (Kind) determines which context
// fields are populated; only the constructor for a kind can set them, so a
// Failure always carries the full context its kind requires.
type Failure struct {
	kind    Kind
	message string
	cause   error

	path    string        // file_access, content_processing
	url     string        // network_connection
	elapsed time.Duration // operation_timeout
	format  string        // serialization
	detail  string        // invalid_configuration
	input   string        // invalid_configuration
}

// NewFileAccess creates a file-access failure for the given path.
func NewFileAccess(path, message string, cause error) (*Failure, error) {
	if path == "" {
		return nil, errors.New("file access failure requires a path")
	}
	if message == "" {
		return nil, errors.New("file access failure requires a message")
	}
	return &Failure{kind: KindFileAccess, message: message, cause: cause, path: path}, nil
}

// NewContentProcessing creates a content-processing failure for the artifact
// at path.
func NewContentProcessing(path, message string, cause error) (*Failure, error) {
	if path == "" {
		return nil, errors.New("content processing failure requires a path")
	}
	if message == "" {
		return nil, errors.New("content processing failure requires a message")
	}
	return &Failure{kind: KindContentProcessing, message: message, cause: cause, path: path}, nil
}

// NewNetworkConnection creates a network-connection failure for the given
// service URL.
func NewNetworkConnection(url, message string, cause error) (*Failure, error) {
	if url == "" {
		return nil, errors.New("network connection failure requires a url")
	}
	if message == "" {
		return nil, errors.New("network connection failure requires a message")
	}
	return &Failure{kind: KindNetworkConnection, message: message, cause: cause, url: url}, nil
}

// NewOperationTimeout creates an operation-timeout failure carrying the
// elapsed duration at the moment the operation gave up.
func NewOperationTimeout(elapsed time.Duration, message string, cause error) (*Failure, error) {
	if elapsed <= 0 {
		return nil, errors.New("operation timeout failure requires a positive elapsed duration")
	}
	if message == "" {
		return nil, errors.New("operation timeout failure requires a message")
	}
	return &Failure{kind: KindOperationTimeout, message: message, cause: cause, elapsed: elapsed}, nil
}

// NewSerialization creates a serialization failure for the named format.
func NewSerialization(format, message string, cause error) (*Failure, error) {
	if format == "" {
		return nil, errors.New("serialization failure requires a format code")
	}
	if message == "" {
		return nil, errors.New("serialization failure requires a message")
	}
	return &Failure{kind: KindSerialization, message: message, cause: cause, format: format}, nil
}

// NewInvalidConfig creates an invalid-configuration failure. detail describes
// what is wrong, input is the offending value.
func NewInvalidConfig(detail, input, message string, cause error) (*Failure, error) {
	if detail == "" {
		return nil, errors.New("invalid configuration failure requires a detail")
	}
	if input == "" {
		return nil, errors.New("invalid configuration failure requires the offending input")
	}
	if message == "" {
		return nil, errors.New("invalid configuration failure requires a message")
	}
	return &Failure{kind: KindInvalidConfig, message: message, cause: cause, detail: detail, input: input}, nil
}

// Kind returns the taxonomy tag.
func (f *Failure) Kind() Kind { return f.kind }

// Message returns the base message without context or cause.
func (f *Failure) Message() string { return f.message }

// Cause returns the wrapped lower-level error, if any.
func (f *Failure) Cause() error { return f.cause }

// Path returns the file path for file-access and content-processing failures.
func (f *Failure) Path() string { return f.path }

// URL returns the service URL for network-connection failures.
func (f *Failure) URL() string { return f.url }

// Elapsed returns the elapsed duration for operation-timeout failures.
func (f *Failure) Elapsed() time.Duration { return f.elapsed }

// Format returns the format code for serialization failures.
func (f *Failure) Format() string { return f.format }

// Detail returns the configuration detail for invalid-configuration failures.
func (f *Failure) Detail() string { return f.detail }

// Input returns the offending input for invalid-configuration failures.
func (f *Failure) Input() string { return f.input }

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", f.kind, f.message, f.cause)
	}
	return fmt.Sprintf("[%s] %s", f.kind, f.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (f *Failure) Unwrap() error { return f.cause }

// Diagnostic returns the full diagnostic string: base message, typed context,
// and the complete cause chain. This is what ends up in logs and in
// ErrorResponse details, so nothing is abbreviated.
func (f *Failure) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", f.kind, f.message)

	switch f.kind {
	case KindFileAccess, KindContentProcessing:
		fmt.Fprintf(&b, " (path=%s)", f.path)
	case KindNetworkConnection:
		fmt.Fprintf(&b, " (url=%s)", f.url)
	case KindOperationTimeout:
		fmt.Fprintf(&b, " (elapsed=%s)", f.elapsed)
	case KindSerialization:
		fmt.Fprintf(&b, " (format=%s)", f.format)
	case KindInvalidConfig:
		fmt.Fprintf(&b, " (detail=%s, input=%s)", f.detail, f.input)
	}

	if f.cause != nil {
		// Wrapped errors render their own chains.
		fmt.Fprintf(&b, ": %s", f.cause.Error())
	}
	return b.String()
}

// As extracts a *Failure from anywhere in err's chain.
func As(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Is reports whether err carries a Failure of the given kind.
func Is(err error, kind Kind) bool {
	if f, ok := As(err); ok {
		return f.kind == kind
	}
	return false
}
