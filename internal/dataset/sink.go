package dataset

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/printfn"
)

// ChainSink runs the whole chain once per row.
func ChainSink(chain *printfn.Chain) Sink {
	return SinkFunc(func(ctx context.Context, _ Row) error {
		if err := chain.Run(ctx); err != nil {
			return err
		}
		if chain.Cancelled() {
			return printfn.ErrCancelled
		}
		return nil
	})
}

// StageSink advances the remainder of the chain once per row. It is what a
// print function uses to merge from inside a running chain.
func StageSink(stage *printfn.Stage) Sink {
	return SinkFunc(func(ctx context.Context, _ Row) error {
		return stage.Advance(ctx)
	})
}

// Capture is the simulated result of one row: the document's field values
// and group visibility after binding.
type Capture struct {
	Index      int               `json:"index"`
	Position   int               `json:"position"`
	Fields     map[string]string `json:"fields"`
	Visibility map[string]bool   `json:"visibility"`
}

// Canonical returns the capture as plain values for canon.MarshalCanonical.
func (c Capture) Canonical() map[string]any {
	fields := c.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	vis := c.Visibility
	if vis == nil {
		vis = map[string]bool{}
	}
	return map[string]any{
		"index":      c.Index,
		"position":   c.Position,
		"fields":     fields,
		"visibility": vis,
	}
}

// CanonicalCaptures converts captures in order with Capture.Canonical.
func CanonicalCaptures(captures []Capture) []any {
	out := make([]any, len(captures))
	for i, c := range captures {
		out[i] = c.Canonical()
	}
	return out
}

// Accumulator is the simulation sink. Instead of running the chain it
// snapshots the bound document for later bulk handling.
//
// Thread-safety: safe for concurrent use; snapshots are taken on the worker.
type Accumulator struct {
	worker *engine.Worker
	doc    *document.Document

	mu       sync.Mutex
	captures []Capture
}

// NewAccumulator creates a simulation sink over doc, owned by worker.
func NewAccumulator(worker *engine.Worker, doc *document.Document) *Accumulator {
	return &Accumulator{worker: worker, doc: doc}
}

// Row implements Sink.
func (a *Accumulator) Row(ctx context.Context, row Row) error {
	var snap document.Snapshot
	err := a.worker.Call(ctx, engine.EventKindFunc, "snapshot", func(context.Context) error {
		snap = a.doc.Snapshot()
		return nil
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.captures = append(a.captures, Capture{
		Index:      row.Index,
		Position:   row.Position,
		Fields:     snap.Fields,
		Visibility: snap.Visibility,
	})
	a.mu.Unlock()
	return nil
}

// Captures returns the captured rows in processing order.
func (a *Accumulator) Captures() []Capture {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.captures)
}

// Len returns the number of captured rows.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.captures)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
