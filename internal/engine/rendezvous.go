package engine

import (
	"context"
	"fmt"
	"sync"
)

// Bridge is a one-shot completion signal between two goroutines.
//
// A producer creates a bridge, hands Signal (usually as an event's Done
// callback) to the worker and blocks in Wait until the worker has finished
// the event. Exactly one value is ever delivered; later Signal calls are
// ignored.
//
// The zero value is not usable; create bridges with NewBridge.
type Bridge[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewBridge creates an unsignaled bridge.
func NewBridge[T any]() *Bridge[T] {
	return &Bridge[T]{done: make(chan struct{})}
}

// Signal delivers v to the waiter. It may be called from any goroutine.
// Returns false if the bridge had already been signaled, in which case v is
// discarded.
func (b *Bridge[T]) Signal(v T) bool {
	delivered := false
	b.once.Do(func() {
		b.value = v
		close(b.done)
		delivered = true
	})
	return delivered
}

// Signaled reports whether Signal has been called.
func (b *Bridge[T]) Signaled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the bridge is signaled and returns the delivered value.
//
// If ctx ends first, Wait returns the zero value and an error wrapping both
// ErrInterrupted and the context's error.
func (b *Bridge[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-b.done:
		return b.value, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}
