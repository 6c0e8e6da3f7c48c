// Package validation holds the error type for local request validation.
// Validation failures are rejected before any queue or network
// interaction and surfaced immediately to the caller.
package validation

import "fmt"

type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Errorf(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}
