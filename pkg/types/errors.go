package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for callers.
type ErrorKind string

const (
	// KindNotFound: a referenced datasource, snapshot, or preprocess does
	// not exist.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindInvalidInput: malformed or unresolvable join keys, missing
	// required snapshot ids, row/column mismatches.
	KindInvalidInput ErrorKind = "INVALID_INPUT"
	// KindSchemaMismatch: uploaded data disagrees with the recorded schema.
	KindSchemaMismatch ErrorKind = "SCHEMA_MISMATCH"
	// KindInvalidState: a preprocess with no parents, or a root datasource
	// with no active snapshot.
	KindInvalidState ErrorKind = "INVALID_STATE"
	// KindTransformError: a named or custom step failed, including sandbox
	// time and memory limits.
	KindTransformError ErrorKind = "TRANSFORM_ERROR"
	// KindStorageError: I/O failure reading or writing snapshot bytes or
	// metadata.
	KindStorageError ErrorKind = "STORAGE_ERROR"
)

// Error is a typed engine failure. Err, when set, is the underlying cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed failure with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed failure preserving the underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err (or anything it wraps) is a typed failure of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
