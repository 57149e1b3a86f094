package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

func startWorker(t *testing.T, opts ...WorkerOption) *Worker {
	t.Helper()
	opts = append([]WorkerOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	w := NewWorker(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		w.Stop()
		select {
		case <-w.Done():
		case <-time.After(time.Second):
			cancel()
		}
		cancel()
	})
	return w
}

func TestWorker_ExecutesInEnqueueOrder(t *testing.T) {
	w := startWorker(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, w.Enqueue(Event{Exec: func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}}))
	}

	require.NoError(t, w.Call(context.Background(), EventKindFunc, "barrier", func(context.Context) error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestWorker_EventsNeverOverlap(t *testing.T) {
	w := startWorker(t)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = w.Call(context.Background(), EventKindFunc, "probe", func(context.Context) error {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()
					time.Sleep(50 * time.Microsecond)
					mu.Lock()
					active--
					mu.Unlock()
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "events must execute one at a time")
}

func TestWorker_CallWaitsForExecutionAndCallback(t *testing.T) {
	w := startWorker(t)

	executed := false
	err := w.Call(context.Background(), EventKindSetField, "Name", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed, "Call must not return before the event ran")
}

func TestWorker_CallReturnsEventError(t *testing.T) {
	w := startWorker(t)

	boom := errors.New("boom")
	err := w.Call(context.Background(), EventKindFunc, "fails", func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWorker_FailingEventDoesNotStopQueue(t *testing.T) {
	var reported []error
	var mu sync.Mutex
	reporter := ReporterFunc(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})
	w := startWorker(t, WithReporter(reporter))

	w.Enqueue(Event{Name: "error", Exec: func(context.Context) error { return errors.New("bad") }})
	w.Enqueue(Event{Name: "panic", Exec: func(context.Context) error { panic("worse") }})

	ran := false
	require.NoError(t, w.Call(context.Background(), EventKindFunc, "after", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 2)
	assert.True(t, IsEventError(reported[0]))
	var pe *PanicError
	assert.ErrorAs(t, reported[1], &pe)
	assert.Equal(t, "worse", pe.Value)
}

func TestWorker_DoneCallbackReceivesPanic(t *testing.T) {
	w := startWorker(t)

	b := NewBridge[error]()
	w.Enqueue(Event{
		Exec: func(context.Context) error { panic("kaboom") },
		Done: func(err error) { b.Signal(err) },
	})

	err, waitErr := b.Wait(context.Background())
	require.NoError(t, waitErr)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
}

func TestWorker_GateClosed(t *testing.T) {
	w := startWorker(t)

	w.SetGateOpen(false)
	assert.False(t, w.GateOpen())
	assert.False(t, w.Enqueue(Event{Name: "dropped"}))

	err := w.Call(context.Background(), EventKindFunc, "dropped", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrGateClosed)

	w.SetGateOpen(true)
	assert.NoError(t, w.Call(context.Background(), EventKindFunc, "accepted", func(context.Context) error { return nil }))
}

func TestWorker_CallFromInsideEventRunsInline(t *testing.T) {
	w := startWorker(t)

	var order []string
	err := w.Call(context.Background(), EventKindFunc, "outer", func(ctx context.Context) error {
		order = append(order, "outer")
		return w.Call(ctx, EventKindFunc, "inner", func(context.Context) error {
			order = append(order, "inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestWorker_StopDrainsQueuedEvents(t *testing.T) {
	w := NewWorker(WithLogger(zaptest.NewLogger(t)))

	count := 0
	for i := 0; i < 3; i++ {
		w.Enqueue(Event{Exec: func(context.Context) error { count++; return nil }})
	}
	w.Stop()
	assert.ErrorIs(t, w.Submit(Event{}), ErrQueueClosed)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 3, count)
}

func TestWorker_ContextCancelAbandonsPending(t *testing.T) {
	w := NewWorker(WithLogger(zaptest.NewLogger(t)))

	b := NewBridge[error]()
	w.Enqueue(Event{Exec: func(context.Context) error { return nil }, Done: func(err error) { b.Signal(err) }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Run sees the already-queued event first, so it executes normally.
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	got, waitErr := b.Wait(context.Background())
	require.NoError(t, waitErr)
	assert.NoError(t, got)
}

func TestWorker_SecondRunPanics(t *testing.T) {
	w := startWorker(t)
	// Ensure the first Run has claimed the worker.
	require.NoError(t, w.Call(context.Background(), EventKindFunc, "sync", func(context.Context) error { return nil }))

	assert.PanicsWithValue(t, "engine: worker already running", func() {
		_ = w.Run(context.Background())
	})
}

// TestWorker_RapidFIFO enqueues random batches from one producer and checks
// the execution order matches the enqueue order exactly.
func TestWorker_RapidFIFO(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := NewWorker()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		w.Start(ctx)
		defer w.Stop()

		values := rapid.SliceOf(rapid.IntRange(0, 1000)).Draw(rt, "values")
		var got []int
		for _, v := range values {
			v := v
			w.Enqueue(Event{Exec: func(context.Context) error {
				got = append(got, v)
				return nil
			}})
		}
		require.NoError(rt, w.Call(ctx, EventKindFunc, "barrier", func(context.Context) error { return nil }))
		if len(values) == 0 {
			require.Empty(rt, got)
			return
		}
		require.Equal(rt, values, got)
	})
}
