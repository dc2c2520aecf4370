// Package errs defines pglue's error taxonomy: wire errors (connection and
// protocol misuse), Postgres errors (an ErrorResponse arrived from the
// server), and type errors (a codec refused a value). Modeled on the
// teacher's executor.QueryError{Code, Message} plus SQLSTATE convention.
package errs

import "fmt"

// WireError is raised for connection failures and protocol/state misuse
// that never reached the server as a well-formed command: connection
// closed, bad SCRAM nonce, unsupported auth mechanism, malformed stream,
// "transaction not open", "channel not listening".
type WireError struct {
	Op      string // e.g. "connect", "pipeline", "listen"
	Message string
}

func (e *WireError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("pglue: %s: %s", e.Op, e.Message)
}

// NewWire constructs a WireError.
func NewWire(op, format string, args ...any) *WireError {
	return &WireError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// ErrClosed is the WireError returned whenever a caller was waiting on a
// pipeline, read, or write when the wire closed underneath it.
var ErrClosed = &WireError{Op: "wire", Message: "connection closed"}

// PostgresError carries an ErrorResponse's fields. It is a distinct type,
// not a *WireError and not wrapping one, so errors.As with a *WireError
// target does not match it; errors.As(&PostgresError{}) narrows to just
// server-reported failures, and membership in the wire-error family is
// reported by the IsWireError marker below.
type PostgresError struct {
	Severity   string
	Code       string
	Message    string
	Detail     string
	Hint       string
	Position   string
	Where      string
	Schema     string
	Table      string
	Column     string
	DataType   string
	Constraint string
	File       string
	Line       string
	Routine    string
}

func (e *PostgresError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pglue: %s (%s): %s — %s", e.Severity, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("pglue: %s (%s): %s", e.Severity, e.Code, e.Message)
}

// IsWireError marks PostgresError as a member of the wire-error family per
// spec ("Postgres errors derive from wire errors"), without literally
// wrapping the sentinel ErrClosed — a rejected query is not a dead
// connection. Callers that want to treat both alike should check this
// marker rather than errors.Is(err, ErrClosed).
func (e *PostgresError) IsWireError() bool { return true }

// IsWireError makes WireError itself satisfy the same marker.
func (e *WireError) IsWireError() bool { return true }

// TypeError is raised when a codec refuses to format or parse a value —
// e.g. an int4 out of range, or malformed bytea text. It is deliberately
// NOT a WireError: it can occur with no connection involved at all
// (formatting a parameter before it's ever sent).
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return "pglue: " + e.Message }

// NewType constructs a TypeError.
func NewType(format string, args ...any) *TypeError {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}
