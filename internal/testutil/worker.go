package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/roach88/printmerge/internal/engine"
)

// StartWorker starts a worker that logs to t and is stopped on cleanup.
func StartWorker(t *testing.T, opts ...engine.WorkerOption) *engine.Worker {
	t.Helper()
	all := append([]engine.WorkerOption{engine.WithLogger(zaptest.NewLogger(t))}, opts...)
	w := engine.NewWorker(all...)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		w.Stop()
		select {
		case <-w.Done():
		case <-time.After(time.Second):
			t.Error("worker did not stop within 1s")
		}
		cancel()
	})
	return w
}
