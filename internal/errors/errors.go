// Package errors defines application-specific error types and sentinel errors.
//
// Invariant violations inside the mark-queue core are programming errors:
// they are raised with panic using the values defined here, so callers that
// recover (tests, supervisors) can still classify them with errors.Is and
// errors.As. Configuration and I/O failures are returned normally.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrQueueInactive    = errors.New("mark queue is inactive")
	ErrBufferFull       = errors.New("record buffer is full")
	ErrInvalidBuffer    = errors.New("invalid record buffer")
	ErrAllocationFailed = errors.New("record buffer allocation failed")
	ErrReporterClosed   = errors.New("cycle reporter is closed")
	ErrConnectionLost   = errors.New("connection lost")
)

// ActiveStateError reports a queue whose activation flag did not match the
// state expected by a global activation transition. It indicates a missed or
// duplicated thread visit.
type ActiveStateError struct {
	Queue    string
	Expected bool
	Actual   bool
}

func (e *ActiveStateError) Error() string {
	return fmt.Sprintf("active state mismatch: queue=%s expected=%t actual=%t",
		e.Queue, e.Expected, e.Actual)
}

// ValidationError represents a malformed cycle report.
type ValidationError struct {
	ReportID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: report=%s field=%s reason=%s",
		e.ReportID, e.Field, e.Reason)
}

// ReportError represents a cycle report publishing failure.
type ReportError struct {
	Sink      string
	Operation string
	Err       error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report error: sink=%s operation=%s: %v",
		e.Sink, e.Operation, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a ReportError is retryable based on the operation type.
func (e *ReportError) IsRetryable() bool {
	if errors.Is(e.Err, ErrReporterClosed) {
		return false
	}
	return e.Operation == "write" || e.Operation == "send" || e.Operation == "create"
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Recovered converts a recovered panic value into an error. Values that are
// already errors are returned unchanged.
func Recovered(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
