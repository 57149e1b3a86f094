package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the engine and its callers.
var (
	// ErrQueueClosed is returned when enqueuing after the worker stopped.
	ErrQueueClosed = errors.New("event queue closed")

	// ErrGateClosed is returned by Submit and Call when intake is suspended.
	ErrGateClosed = errors.New("event gate closed")

	// ErrInterrupted is returned by Bridge.Wait when the waiting context ends
	// before the bridge was signaled.
	ErrInterrupted = errors.New("rendezvous interrupted")

	// ErrCancelled marks work that stopped because a print run was cancelled.
	// Cancellation is never reported as a failure.
	ErrCancelled = errors.New("print run cancelled")
)

// RuntimeError represents a failure detected while processing a print run.
//
// Runtime errors include:
//   - Unknown print function: a chain names a function the registry lacks
//   - Bind failure: a field assignment failed for one row
//   - Stage failure: a print function returned an error or panicked
//   - Event failure: a queued document event failed on the worker
//
// RuntimeError includes structured fields for diagnostics and dedup.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected print run, if known.
	RunID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownFunction indicates a print function is not registered.
	ErrCodeUnknownFunction RuntimeErrorCode = "UNKNOWN_FUNCTION"

	// ErrCodeBindFailed indicates a field could not be bound for a row.
	ErrCodeBindFailed RuntimeErrorCode = "BIND_FAILED"

	// ErrCodeStageFailed indicates a print function stage failed.
	ErrCodeStageFailed RuntimeErrorCode = "STAGE_FAILED"

	// ErrCodeEventFailed indicates a queued document event failed.
	ErrCodeEventFailed RuntimeErrorCode = "EVENT_FAILED"

	// ErrCodeTerminalFailed indicates the terminal output action failed.
	ErrCodeTerminalFailed RuntimeErrorCode = "TERMINAL_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownFunction returns true if the error reports a missing print function.
func IsUnknownFunction(err error) bool {
	return hasCode(err, ErrCodeUnknownFunction)
}

// IsBindError returns true if the error is a field binding failure.
func IsBindError(err error) bool {
	return hasCode(err, ErrCodeBindFailed)
}

// IsStageError returns true if the error is a print function stage failure.
func IsStageError(err error) bool {
	return hasCode(err, ErrCodeStageFailed)
}

// IsEventError returns true if the error is a worker event failure.
func IsEventError(err error) bool {
	return hasCode(err, ErrCodeEventFailed)
}

// NewUnknownFunctionError creates a RuntimeError for a missing print function.
func NewUnknownFunctionError(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownFunction,
		Message: fmt.Sprintf("print function %q is not registered", name),
		Details: map[string]string{"function": name},
	}
}

// NewBindError creates a RuntimeError for a failed field assignment.
func NewBindError(field string, row int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBindFailed,
		Message: fmt.Sprintf("binding field %q failed", field),
		Details: map[string]string{
			"field": field,
			"row":   fmt.Sprintf("%d", row),
		},
		Err: err,
	}
}

// NewStageError creates a RuntimeError for a failed print function stage.
func NewStageError(function string, position int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStageFailed,
		Message: fmt.Sprintf("print function %q failed", function),
		Details: map[string]string{
			"function": function,
			"position": fmt.Sprintf("%d", position),
		},
		Err: err,
	}
}

// NewEventError creates a RuntimeError for a failed worker event.
func NewEventError(ev Event, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEventFailed,
		Message: fmt.Sprintf("%s event %q failed", ev.Kind, ev.Name),
		Details: map[string]string{
			"seq":  fmt.Sprintf("%d", ev.Seq),
			"kind": ev.Kind.String(),
		},
		Err: err,
	}
}

// NewTerminalError creates a RuntimeError for a failed output production.
func NewTerminalError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTerminalFailed,
		Message: "producing output failed",
		Err:     err,
	}
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
