package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue(NewClock())

	stamped, ok, err := q.Enqueue(Event{Kind: EventKindSetField, Name: "Name"})
	require.NoError(t, err)
	require.True(t, ok, "enqueue should succeed")
	assert.Equal(t, int64(1), stamped.Seq)

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, EventKindSetField, got.Kind)
	assert.Equal(t, "Name", got.Name)
	assert.Equal(t, int64(1), got.Seq)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue(NewClock())

	for _, name := range []string{"A", "B", "C"} {
		_, _, err := q.Enqueue(Event{Name: name})
		require.NoError(t, err)
	}

	for i, want := range []string{"A", "B", "C"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.Name)
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue(NewClock())

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_GateClosed_DropsSilently(t *testing.T) {
	q := newEventQueue(NewClock())
	_, _, err := q.Enqueue(Event{Name: "before"})
	require.NoError(t, err)

	q.SetGateOpen(false)
	assert.False(t, q.GateOpen())

	_, ok, err := q.Enqueue(Event{Name: "dropped"})
	assert.NoError(t, err, "closed gate is not an error")
	assert.False(t, ok)

	// Closing the gate does not drain what was already queued
	assert.Equal(t, 1, q.Len())

	q.SetGateOpen(true)
	_, ok, err = q.Enqueue(Event{Name: "after"})
	require.NoError(t, err)
	assert.True(t, ok)

	first, _ := q.TryDequeue()
	second, _ := q.TryDequeue()
	assert.Equal(t, "before", first.Name)
	assert.Equal(t, "after", second.Name)
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue(NewClock())
	q.Close()

	_, ok, err := q.Enqueue(Event{Name: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.False(t, ok)

	// Signal channel is closed, so Wait never blocks
	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}

	// Double close is a no-op
	q.Close()
}

func TestEventQueue_Drain(t *testing.T) {
	q := newEventQueue(NewClock())
	for _, name := range []string{"x", "y"} {
		_, _, err := q.Enqueue(Event{Name: name})
		require.NoError(t, err)
	}

	pending := q.drain()
	require.Len(t, pending, 2)
	assert.Equal(t, "x", pending[0].Name)
	assert.Equal(t, "y", pending[1].Name)
	assert.Equal(t, 0, q.Len())
}

// TestEventQueue_Rapid checks the queue against a slice model under random
// enqueue/dequeue/gate sequences.
func TestEventQueue_Rapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := newEventQueue(NewClock())
		gate := true
		var model []string

		t.Repeat(map[string]func(*rapid.T){
			"enqueue": func(t *rapid.T) {
				name := rapid.StringMatching(`[a-z]{1,4}`).Draw(t, "name")
				_, ok, err := q.Enqueue(Event{Name: name})
				require.NoError(t, err)
				require.Equal(t, gate, ok)
				if gate {
					model = append(model, name)
				}
			},
			"dequeue": func(t *rapid.T) {
				if len(model) == 0 {
					t.Skip("queue is empty")
				}
				e, ok := q.TryDequeue()
				require.True(t, ok)
				require.Equal(t, model[0], e.Name)
				model = model[1:]
			},
			"gate": func(t *rapid.T) {
				gate = rapid.Bool().Draw(t, "open")
				q.SetGateOpen(gate)
			},
			"": func(t *rapid.T) {
				require.Equal(t, len(model), q.Len())
			},
		})
	})
}
