package helper

import (
	"errors"
	"fmt"
)

// Error wraps an underlying error with a short trace of the operation that failed.
type Error struct {
	Original error
	Trace    string
}

// NewError wraps err with a trace describing the failed operation.
// Nested calls stack their traces, e.g. "retrieve: search region Henan: connection refused".
func NewError(trace string, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Error{
		Original: err,
		Trace:    trace,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Original)
}

// Unwrap returns the wrapped error so errors.Is and errors.As see through the trace.
func (e *Error) Unwrap() error {
	return e.Original
}
