// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so a compile failure can be reported by category
// (channel, import, connection, protocol loop) without string matching.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// and plays well with the standard errors.Is / errors.As helpers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ChannelFailed indicates the compiler channel reported a transient failure before becoming ready.
	ChannelFailed Kind = "channel_failed"
	// StreamClosed indicates the compiler closed the stream before completing.
	StreamClosed Kind = "stream_closed"
	// ImportFailed indicates a referenced document could not be read.
	ImportFailed Kind = "import_failed"
	// ConnectionNotFound indicates a key named a connection absent from the registry.
	ConnectionNotFound Kind = "connection_not_found"
	// NoConnections indicates the default connection was requested from an empty registry.
	NoConnections Kind = "no_connections"
	// ProtocolLoop indicates the compiler repeated an identical response.
	ProtocolLoop Kind = "protocol_loop"
	// CompileFailed indicates the compiler reported a diagnostic (UNKNOWN response).
	CompileFailed Kind = "compile_failed"
	// SchemaFailed indicates a connection could not resolve a schema.
	SchemaFailed Kind = "schema_failed"
	// InvalidInput indicates the caller supplied an unusable session input.
	InvalidInput Kind = "invalid_input"
	// ServiceFailed indicates the compiler service process could not be started.
	ServiceFailed Kind = "service_failed"
	// ConfigInvalid indicates a malformed configuration value.
	ConfigInvalid Kind = "config_invalid"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is an *E of the same kind.
func (e *E) Is(target error) bool {
	var t *E
	if stderrors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &E{Kind: kind})
}
