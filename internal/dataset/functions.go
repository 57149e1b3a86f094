package dataset

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/printfn"
)

// Chain positions of the print functions this package provides.
const (
	MailMergeOrder = 10
	StampOrder     = 40

	// DefaultStampField is the field stamp writes the run id into.
	DefaultStampField = "PrintRun"

	// PropProcessed accumulates the rows mailmerge bound in this run.
	PropProcessed = "merge.processed"
)

// ErrNoDocument is returned by functions that need a worker and binder when
// the chain was built without a document.
var ErrNoDocument = errors.New("chain has no document")

// Register adds mailmerge and stamp to r. mailmerge reads its rows from
// source; opts configure the iterator it runs (fields, tracing).
func Register(r *printfn.Registry, source RowSource, opts ...IteratorOption) error {
	if err := r.Register("mailmerge", MailMergeOrder, MailMerge(source, opts...)); err != nil {
		return err
	}
	return r.Register("stamp", StampOrder, Stamp)
}

// MailMerge returns a print function that merges the selection found in
// prop "selection" (a Selection or its text form, default all rows) and
// advances the rest of the chain once per row.
func MailMerge(source RowSource, opts ...IteratorOption) printfn.Func {
	return func(ctx context.Context, s *printfn.Stage) error {
		if s.Worker() == nil || s.Binder() == nil {
			return ErrNoDocument
		}
		sel, err := SelectionFromProps(s.Props())
		if err != nil {
			return err
		}
		indices := sel.Resolve(source.RowCount())
		s.Logger().Info("merging rows", zap.String("selection", sel.String()), zap.Int("rows", len(indices)))

		all := append([]IteratorOption{
			WithLogger(s.Logger()),
			WithReporter(s.Reporter()),
			WithProgress(s),
			WithCancel(s.Cancelled),
			WithRunID(s.RunID()),
		}, opts...)
		it := NewIterator(s.Worker(), s.Binder(), source, all...)

		stats, err := it.Run(ctx, indices, StageSink(s))
		s.Props().Set(PropProcessed, s.Props().Int(PropProcessed, 0)+stats.Processed)
		if err != nil {
			return err
		}
		if stats.Cancelled {
			return printfn.ErrCancelled
		}
		return nil
	}
}

// SelectionFromProps reads prop "selection". Missing means all rows.
func SelectionFromProps(props *printfn.PropertyBag) (Selection, error) {
	v, ok := props.Get(printfn.PropSelection)
	if !ok || v == nil {
		return All(), nil
	}
	switch sel := v.(type) {
	case Selection:
		return sel, nil
	case *Selection:
		return *sel, nil
	case string:
		return ParseSelection(sel)
	default:
		return ParseSelection(props.String(printfn.PropSelection, ""))
	}
}

// Stamp writes the run id into the field named by prop "stamp.field"
// (default PrintRun) and advances. A failed assignment is reported and the
// chain continues.
func Stamp(ctx context.Context, s *printfn.Stage) error {
	w, b := s.Worker(), s.Binder()
	if w == nil || b == nil {
		return ErrNoDocument
	}
	field := s.Props().String(printfn.PropStampField, DefaultStampField)
	runID := s.RunID()

	err := w.Call(ctx, engine.EventKindSetField, field, func(ctx context.Context) error {
		return b.SetField(ctx, field, runID)
	})
	if err != nil {
		if fatal(err) {
			return err
		}
		rerr := engine.NewBindError(field, -1, err)
		rerr.RunID = runID
		s.Logger().Warn("stamp failed", zap.String("field", field), zap.Error(err))
		s.Reporter().ReportError(rerr)
	}
	return s.Advance(ctx)
}
