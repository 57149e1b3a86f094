package engine

import (
	"sync"

	"github.com/gammazero/deque"
)

// eventQueue is a thread-safe FIFO queue of pending document events.
//
// The queue is unbounded: producers never block on Enqueue.
//
// Thread-safety is provided for enqueuing from any goroutine while the
// Worker's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu       sync.Mutex
	events   deque.Deque[Event]
	clock    *Clock
	gateOpen bool
	closed   bool
	signal   chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue with an open gate.
func newEventQueue(clock *Clock) *eventQueue {
	return &eventQueue{
		clock:    clock,
		gateOpen: true,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue stamps the event with the next seq and adds it to the back of the
// queue. Thread-safe: may be called from any goroutine.
//
// Returns ErrQueueClosed if the queue is closed. Returns (false, nil) when
// the gate is closed; the event is dropped.
func (q *eventQueue) Enqueue(e Event) (Event, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return e, false, ErrQueueClosed
	}
	if !q.gateOpen {
		return e, false, nil
	}

	// Stamping under the lock keeps seq order identical to queue order.
	e.Seq = q.clock.Next()
	q.events.PushBack(e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return e, true, nil
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.events.Len() == 0 {
		return Event{}, false
	}
	return q.events.PopFront(), true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events.Len()
}

// SetGateOpen toggles intake. Closing the gate leaves queued events alone.
func (q *eventQueue) SetGateOpen(open bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gateOpen = open
}

// GateOpen reports whether Enqueue currently accepts events.
func (q *eventQueue) GateOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gateOpen
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// drain removes and returns every pending event.
func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]Event, 0, q.events.Len())
	for q.events.Len() > 0 {
		pending = append(pending, q.events.PopFront())
	}
	return pending
}
