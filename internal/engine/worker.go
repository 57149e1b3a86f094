package engine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Worker is the single consumer of the document event queue.
//
// CRITICAL: All document mutations happen in the Run goroutine.
// External callers use Enqueue, Submit or Call to hand work over.
//
// Thread-safety model:
//   - Enqueue/Submit/Call/SetGateOpen/Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine (a second call panics)
//
// One Worker is constructed per process at startup and passed to everything
// that touches the document.
type Worker struct {
	queue    *eventQueue
	clock    *Clock
	logger   *zap.Logger
	reporter ErrorReporter
	running  atomic.Bool
	done     chan struct{}
}

// WorkerOption allows configuration of worker parameters.
type WorkerOption func(*Worker)

// WithLogger sets the worker's logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithReporter sets where event failures are reported. Default: a
// LogReporter on the worker's logger.
func WithReporter(r ErrorReporter) WorkerOption {
	return func(w *Worker) {
		w.reporter = r
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(c *Clock) WorkerOption {
	return func(w *Worker) {
		w.clock = c
	}
}

// NewWorker creates a stopped worker with an open gate.
func NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		clock:  NewClock(),
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.reporter == nil {
		w.reporter = NewLogReporter(w.logger, nil)
	}
	w.queue = newEventQueue(w.clock)
	return w
}

// Start runs the event loop in a new goroutine.
// Use Stop (or cancel ctx) and then Done to shut down.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		_ = w.Run(ctx)
	}()
}

// Done returns a channel that is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the event was dropped because the gate is closed or the
// worker has been stopped.
func (w *Worker) Enqueue(ev Event) bool {
	ok, _ := w.enqueue(ev)
	return ok
}

// Submit is Enqueue with an explicit reason for dropped events:
// ErrGateClosed or ErrQueueClosed.
func (w *Worker) Submit(ev Event) error {
	ok, err := w.enqueue(ev)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGateClosed
	}
	return nil
}

func (w *Worker) enqueue(ev Event) (bool, error) {
	if ev.Kind == 0 {
		ev.Kind = EventKindFunc
	}
	stamped, ok, err := w.queue.Enqueue(ev)
	switch {
	case err != nil:
		w.logger.Debug("event rejected", zap.String("event", ev.String()), zap.Error(err))
	case !ok:
		w.logger.Debug("event dropped: gate closed", zap.String("event", ev.String()))
	default:
		w.logger.Debug("event enqueued", zap.String("event", stamped.String()))
	}
	return ok, err
}

// Call enqueues fn and blocks until the worker has executed it, returning
// fn's error. It is the synchronous form of Enqueue for call sites that
// need the document settled before continuing.
//
// Called from inside an event (i.e. already on the worker goroutine), Call
// executes fn inline instead of deadlocking on itself.
func (w *Worker) Call(ctx context.Context, kind EventKind, name string, fn func(ctx context.Context) error) error {
	if w.onWorker(ctx) {
		return fn(ctx)
	}

	bridge := NewBridge[error]()
	err := w.Submit(Event{
		Kind: kind,
		Name: name,
		Exec: fn,
		Done: func(err error) { bridge.Signal(err) },
	})
	if err != nil {
		return err
	}

	result, err := bridge.Wait(ctx)
	if err != nil {
		return err
	}
	return result
}

// SetGateOpen suspends (false) or resumes (true) event intake.
// Closing the gate does not drain or cancel events already queued.
func (w *Worker) SetGateOpen(open bool) {
	w.queue.SetGateOpen(open)
	w.logger.Debug("event gate changed", zap.Bool("open", open))
}

// GateOpen reports whether the worker currently accepts events.
func (w *Worker) GateOpen() bool {
	return w.queue.GateOpen()
}

// QueueLen returns the number of events waiting to run.
func (w *Worker) QueueLen() int {
	return w.queue.Len()
}

// Run starts the single-consumer event loop.
// Blocks until ctx is cancelled, or Stop() is called and the queue drained.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A failing or panicking event is logged and the loop
// continues with the next event. The error goes to the event's Done
// callback when it has one and to the ErrorReporter otherwise. A single
// failing event never stops the queue.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		panic("engine: worker already running")
	}
	defer close(w.done)

	w.logger.Info("worker starting")
	execCtx := w.markWorkerContext(ctx)

	for {
		// Try non-blocking dequeue first
		ev, ok := w.queue.TryDequeue()
		if ok {
			w.execute(execCtx, ev)
			continue
		}

		// No event ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping: context cancelled")
			w.queue.Close()
			w.abandon(w.queue.drain())
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// case fires immediately once Stop has been called.
			if w.queue.Len() == 0 && w.closed() {
				w.logger.Info("worker stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Events already queued still run, then Run returns.
func (w *Worker) Stop() {
	w.queue.Close()
}

func (w *Worker) closed() bool {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()
	return w.queue.closed
}

// execute runs one event and its completion callback.
// CRITICAL: Called only from the Run goroutine.
func (w *Worker) execute(ctx context.Context, ev Event) {
	w.logger.Debug("processing event", zap.String("event", ev.String()))

	err := w.protect(func() error {
		if ev.Exec == nil {
			return nil
		}
		return ev.Exec(ctx)
	})
	if err != nil {
		w.logEventError(ev, err)
		// A waiter owns the error it receives; only fire-and-forget
		// failures go to the reporter.
		if ev.Done == nil {
			w.reporter.ReportError(NewEventError(ev, err))
		}
	}

	if ev.Done != nil {
		if cbErr := w.protect(func() error { ev.Done(err); return nil }); cbErr != nil {
			w.logger.Error("event completion callback failed",
				zap.Int64("seq", ev.Seq),
				zap.String("event", ev.String()),
				zap.Error(cbErr),
			)
		}
	}
}

// abandon completes events that will never run so their waiters return.
func (w *Worker) abandon(pending []Event) {
	for _, ev := range pending {
		w.logger.Warn("event abandoned", zap.String("event", ev.String()))
		if ev.Done != nil {
			_ = w.protect(func() error { ev.Done(ErrQueueClosed); return nil })
		}
	}
}

func (w *Worker) protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	return fn()
}

// logEventError logs a failed event with full context for investigation.
func (w *Worker) logEventError(ev Event, err error) {
	w.logger.Error("event processing failed",
		zap.Int64("seq", ev.Seq),
		zap.String("kind", ev.Kind.String()),
		zap.String("name", ev.Name),
		zap.Error(err),
	)
}

type workerContextKey struct{}

func (w *Worker) markWorkerContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, workerContextKey{}, w)
}

func (w *Worker) onWorker(ctx context.Context) bool {
	owner, _ := ctx.Value(workerContextKey{}).(*Worker)
	return owner == w
}
