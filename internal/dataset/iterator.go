package dataset

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/printfn"
)

// Default names of the implicit per-row fields.
const (
	// RecordNumberField holds the row's 1-based position in the full source.
	RecordNumberField = "RecordNumber"
	// SelectionNumberField holds the row's 1-based position in the selection.
	SelectionNumberField = "SelectionNumber"
)

// Row is one bound row handed to a Sink.
type Row struct {
	Index    int // 0-based index into the source
	Position int // 0-based position within the selection
	Values   map[string]string
}

// Sink consumes rows once their fields are bound.
type Sink interface {
	Row(ctx context.Context, row Row) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, row Row) error

// Row calls f.
func (f SinkFunc) Row(ctx context.Context, row Row) error {
	return f(ctx, row)
}

// ProgressReporter receives per-row progress. printfn.Stage implements it.
type ProgressReporter interface {
	SetProgressMax(n int)
	SetProgressValue(n int)
}

// ProgressKey reports into a printfn.Progress under a fixed key.
type ProgressKey struct {
	Progress *printfn.Progress
	Key      string
}

// SetProgressMax implements ProgressReporter.
func (p ProgressKey) SetProgressMax(n int) { p.Progress.SetMax(p.Key, n) }

// SetProgressValue implements ProgressReporter.
func (p ProgressKey) SetProgressValue(n int) { p.Progress.SetValue(p.Key, n) }

// Stats summarises one iteration.
type Stats struct {
	Processed    int
	Skipped      int
	BindFailures int
	Cancelled    bool
}

// Iterator binds rows into the document and hands each to a sink.
//
// Every field is first cleared and then set, so derived fields re-evaluate
// even when the value did not change. Each assignment is a worker event
// awaited before the next one is issued.
type Iterator struct {
	worker   *engine.Worker
	binder   document.Binder
	source   RowSource
	fields   []string
	record   string
	position string
	logger   *zap.Logger
	tracer   trace.Tracer
	reporter engine.ErrorReporter
	progress ProgressReporter
	cancel   func() bool
	runID    string

	// bound holds the last value set per field.
	bound map[string]string
}

// IteratorOption configures an Iterator.
type IteratorOption func(*Iterator)

// WithFields sets the fields bound for every row. Default: the source's
// fields when it has a Fields method, otherwise the row's keys in sorted
// order.
func WithFields(fields []string) IteratorOption {
	return func(it *Iterator) { it.fields = fields }
}

// WithImplicitFields renames the implicit record and selection number
// fields. An empty name disables that field.
func WithImplicitFields(record, selection string) IteratorOption {
	return func(it *Iterator) {
		it.record = record
		it.position = selection
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) IteratorOption {
	return func(it *Iterator) { it.logger = logger }
}

// WithTracerProvider sets where merge spans go. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) IteratorOption {
	return func(it *Iterator) { it.tracer = tp.Tracer(printfn.TracerName) }
}

// WithReporter sets the error surface for bind failures.
func WithReporter(r engine.ErrorReporter) IteratorOption {
	return func(it *Iterator) { it.reporter = r }
}

// WithProgress reports one unit per processed row.
func WithProgress(p ProgressReporter) IteratorOption {
	return func(it *Iterator) { it.progress = p }
}

// WithCancel sets the cancellation check consulted before every row.
func WithCancel(cancelled func() bool) IteratorOption {
	return func(it *Iterator) { it.cancel = cancelled }
}

// WithRunID tags bind errors and logs with a run id.
func WithRunID(id string) IteratorOption {
	return func(it *Iterator) { it.runID = id }
}

// NewIterator creates an iterator that binds rows from source through
// binder on worker.
func NewIterator(worker *engine.Worker, binder document.Binder, source RowSource, opts ...IteratorOption) *Iterator {
	it := &Iterator{
		worker:   worker,
		binder:   binder,
		source:   source,
		record:   RecordNumberField,
		position: SelectionNumberField,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(printfn.TracerName),
		cancel:   func() bool { return false },
		bound:    make(map[string]string),
	}
	if fs, ok := source.(interface{ Fields() []string }); ok {
		it.fields = fs.Fields()
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.reporter == nil {
		it.reporter = engine.NewLogReporter(it.logger, nil)
	}
	it.logger = it.logger.With(zap.String("run_id", it.runID))
	return it
}

// Run processes indices in order. Before each row it checks for
// cancellation and stops immediately when set. A failing field is reported
// and left alone; the row still reaches the sink. A row the source cannot
// provide is reported and skipped.
//
// Run returns early with an error when the sink fails, when the worker
// stops, or when ctx ends.
func (it *Iterator) Run(ctx context.Context, indices []int, sink Sink) (Stats, error) {
	ctx, span := it.tracer.Start(ctx, "merge.run", trace.WithAttributes(
		attribute.Int("rows", len(indices)),
	))
	defer span.End()

	var stats Stats
	if it.progress != nil {
		it.progress.SetProgressMax(len(indices))
		defer it.progress.SetProgressMax(0)
	}

	for pos, index := range indices {
		if it.cancel() || ctx.Err() != nil {
			stats.Cancelled = true
			it.logger.Info("merge cancelled", zap.Int("processed", stats.Processed), zap.Int("remaining", len(indices)-pos))
			break
		}

		err := it.row(ctx, pos, index, sink, &stats)
		if it.progress != nil {
			it.progress.SetProgressValue(pos + 1)
		}
		// A bind interrupted by the run's own cancellation is a cancel, not
		// a failure.
		if errors.Is(err, engine.ErrInterrupted) && (it.cancel() || ctx.Err() != nil) {
			err = printfn.ErrCancelled
		}
		if errors.Is(err, printfn.ErrCancelled) {
			stats.Cancelled = true
			break
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return stats, err
		}
	}

	span.SetAttributes(
		attribute.Int("processed", stats.Processed),
		attribute.Bool("cancelled", stats.Cancelled),
	)
	return stats, nil
}

func (it *Iterator) row(ctx context.Context, pos, index int, sink Sink, stats *Stats) error {
	ctx, span := it.tracer.Start(ctx, "merge.row", trace.WithAttributes(
		attribute.Int("index", index),
		attribute.Int("position", pos),
	))
	defer span.End()

	values, err := it.source.ValuesFor(index)
	if err != nil {
		stats.Skipped++
		rerr := engine.NewBindError("*", index, err)
		rerr.RunID = it.runID
		it.logger.Warn("row skipped", zap.Int("row", index), zap.Error(err))
		it.reporter.ReportError(rerr)
		return nil
	}

	for _, name := range it.fieldsFor(values) {
		if err := it.bind(ctx, index, name, values[name]); err != nil {
			if fatal(err) {
				return err
			}
			stats.BindFailures++
		}
	}
	if it.record != "" {
		if err := it.bind(ctx, index, it.record, fmt.Sprint(index+1)); err != nil {
			if fatal(err) {
				return err
			}
			stats.BindFailures++
		}
	}
	if it.position != "" {
		if err := it.bind(ctx, index, it.position, fmt.Sprint(pos+1)); err != nil {
			if fatal(err) {
				return err
			}
			stats.BindFailures++
		}
	}

	stats.Processed++
	it.logger.Debug("row bound", zap.Int("row", index), zap.Int("position", pos))
	return sink.Row(ctx, Row{Index: index, Position: pos, Values: values})
}

// bind clears and then sets one field through the worker, waiting for each
// event to finish. A failed clear leaves the field untouched; a failed set
// puts the value from before the clear back.
func (it *Iterator) bind(ctx context.Context, index int, name, value string) error {
	var (
		prev  string
		known bool
	)
	err := it.worker.Call(ctx, engine.EventKindClearField, name, func(ctx context.Context) error {
		prev, known = it.current(name)
		return it.binder.ClearField(ctx, name)
	})
	if err == nil {
		err = it.worker.Call(ctx, engine.EventKindSetField, name, func(ctx context.Context) error {
			return it.binder.SetField(ctx, name, value)
		})
		if err != nil && !fatal(err) && known {
			it.restore(ctx, name, prev)
		}
	}
	if err == nil {
		it.bound[name] = value
		return nil
	}
	if fatal(err) {
		return err
	}

	rerr := engine.NewBindError(name, index, err)
	rerr.RunID = it.runID
	it.logger.Warn("field binding failed", zap.String("field", name), zap.Int("row", index), zap.Error(err))
	it.reporter.ReportError(rerr)
	return rerr
}

// current returns the value name holds before it is cleared. It runs on
// the worker. Binders that cannot report values fall back to the last
// value this iterator bound.
func (it *Iterator) current(name string) (string, bool) {
	if r, ok := it.binder.(document.FieldReader); ok {
		return r.Field(name)
	}
	v, ok := it.bound[name]
	return v, ok
}

func (it *Iterator) restore(ctx context.Context, name, prev string) {
	err := it.worker.Call(ctx, engine.EventKindSetField, name, func(ctx context.Context) error {
		return it.binder.SetField(ctx, name, prev)
	})
	if err != nil {
		it.logger.Warn("field could not be restored", zap.String("field", name), zap.Error(err))
	}
}

// fatal reports errors that end the whole merge rather than one field.
func fatal(err error) bool {
	return errors.Is(err, engine.ErrQueueClosed) || errors.Is(err, engine.ErrInterrupted)
}
