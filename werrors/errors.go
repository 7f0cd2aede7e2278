// Package werrors defines the error taxonomy shared by every weather
// package: a fixed set of sentinel Kind errors checked with errors.Is, and
// a wrapping *Error carrying the failing operation for diagnostics.
package werrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every error the public API returns wraps exactly one of
// these via errors.Is, so callers can branch on failure kind without string
// matching.
var (
	// ErrNotFound: unknown alias, missing archive, absent schema.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous: criteria matched more than one location where exactly
	// one was required.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrCorruptData: invalid ZIP, malformed JSON, malformed archive entry
	// name.
	ErrCorruptData = errors.New("corrupt data")
	// ErrAlreadyExists: re-adding an existing (lid, date) or creating over
	// an existing archive. Not fatal on idempotent paths; callers log and
	// continue rather than propagating it as a hard failure.
	ErrAlreadyExists = errors.New("already exists")
	// ErrIOError: filesystem failure.
	ErrIOError = errors.New("i/o error")
	// ErrSchemaError: DDL failure or config mismatch.
	ErrSchemaError = errors.New("schema error")
	// ErrConcurrency: thread join failure, unexpected channel disconnect.
	ErrConcurrency = errors.New("concurrency error")
)

// Error wraps a sentinel Kind with the operation and location context that
// produced it.
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // operation name, e.g. "archive.Open"
	Info string // extra context, e.g. an alias or file path
	Err  error  // underlying error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Info != "" {
			return fmt.Sprintf("%s: %s: %v: %v", e.Op, e.Info, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	if e.Info != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Info, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap makes errors.Is(err, werrors.ErrNotFound) (etc.) work, and also
// exposes the wrapped cause when present.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New constructs an *Error for op/info wrapping kind.
func New(kind error, op, info string) error {
	return &Error{Kind: kind, Op: op, Info: info}
}

// Wrap constructs an *Error for op/info wrapping kind and an underlying
// cause.
func Wrap(kind error, op, info string, err error) error {
	return &Error{Kind: kind, Op: op, Info: info, Err: err}
}
