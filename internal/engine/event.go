package engine

import (
	"context"
	"fmt"
)

// EventKind labels what an event does to the document.
type EventKind int

const (
	// EventKindFunc is arbitrary document work supplied as a closure.
	EventKindFunc EventKind = iota + 1
	// EventKindSetField assigns a value to a named field.
	EventKindSetField
	// EventKindClearField empties a named field.
	EventKindClearField
)

func (k EventKind) String() string {
	switch k {
	case EventKindFunc:
		return "func"
	case EventKindSetField:
		return "set_field"
	case EventKindClearField:
		return "clear_field"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one unit of document-mutating work.
//
// An event is executed exactly once by the Worker, never concurrently with
// another event and never reordered relative to other events.
type Event struct {
	// Seq is stamped by the queue on enqueue. Values set by callers are
	// overwritten.
	Seq int64

	Kind EventKind

	// Name identifies the target of the event (a field name or an operation
	// label). Used for logging and error reports.
	Name string

	// Exec performs the work on the worker goroutine.
	Exec func(ctx context.Context) error

	// Done, if set, is invoked on the worker goroutine after Exec returns,
	// with Exec's error (or the recovered panic).
	Done func(err error)
}

// String renders the event for log output.
func (e Event) String() string {
	if e.Name == "" {
		return fmt.Sprintf("#%d %s", e.Seq, e.Kind)
	}
	return fmt.Sprintf("#%d %s %s", e.Seq, e.Kind, e.Name)
}
