package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/printfn"
	"github.com/roach88/printmerge/internal/testutil"
)

func letter() *document.Document {
	return document.New("letter", document.Template{
		Body:   "{{Name}} of {{City}} [{{PrintRun}}]",
		Fields: []string{"Name", "City", "PrintRun", RecordNumberField, SelectionNumberField},
	})
}

// renderTerminal renders the document on the worker for every production.
func renderTerminal(out *[]string) printfn.TerminalFunc {
	return func(ctx context.Context, p printfn.Production) error {
		return p.Worker.Call(ctx, engine.EventKindFunc, "render", func(context.Context) error {
			*out = append(*out, p.Document.Render())
			return nil
		})
	}
}

func newMergeChain(t *testing.T, w *engine.Worker, doc *document.Document, out *[]string, functions ...string) *printfn.Chain {
	t.Helper()
	reg := printfn.NewRegistry()
	require.NoError(t, printfn.RegisterBuiltins(reg))
	require.NoError(t, Register(reg, people()))

	c := printfn.NewChain(reg,
		printfn.WithLogger(zaptest.NewLogger(t)),
		printfn.WithRunID("run-42"),
		printfn.WithWorker(w),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(renderTerminal(out)),
	)
	for _, f := range functions {
		require.NoError(t, c.AddFunction(f))
	}
	return c
}

func TestMailMerge_AdvancesOncePerSelectedRow(t *testing.T) {
	w := testutil.StartWorker(t)
	doc := letter()
	var out []string
	c := newMergeChain(t, w, doc, &out, "copies", "stamp", "mailmerge")
	c.Props().Set(printfn.PropSelection, "2-3")
	c.Props().Set(printfn.PropCopies, 2)

	assert.Equal(t, []printfn.Descriptor{
		{Name: "mailmerge", Order: MailMergeOrder},
		{Name: "stamp", Order: StampOrder},
		{Name: "copies", Order: printfn.CopiesOrder},
	}, c.Functions())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{
		"Grace of Arlington [run-42]",
		"Grace of Arlington [run-42]",
		"Edsger of Austin [run-42]",
		"Edsger of Austin [run-42]",
	}, out)
	assert.Equal(t, 2, c.Props().Int(PropProcessed, 0))
}

func TestMailMerge_CancelStopsRemainingRows(t *testing.T) {
	w := testutil.StartWorker(t)
	doc := letter()
	var out []string

	reg := printfn.NewRegistry()
	require.NoError(t, Register(reg, people()))
	reg.MustRegister("stop-after-first", 50, func(ctx context.Context, s *printfn.Stage) error {
		err := s.Advance(ctx)
		s.Cancel()
		return err
	})
	c := printfn.NewChain(reg,
		printfn.WithWorker(w),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(renderTerminal(&out)),
	)
	require.NoError(t, c.AddFunction("mailmerge"))
	require.NoError(t, c.AddFunction("stop-after-first"))

	require.NoError(t, c.Run(context.Background()))
	assert.True(t, c.Cancelled())
	assert.Equal(t, []string{"Ada of London []"}, out)
}

func TestMailMerge_WithoutDocumentFails(t *testing.T) {
	reg := printfn.NewRegistry()
	require.NoError(t, Register(reg, people()))
	c := printfn.NewChain(reg, printfn.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, c.AddFunction("mailmerge"))

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.True(t, engine.IsStageError(err))
}

func TestStamp_UsesConfiguredField(t *testing.T) {
	w := testutil.StartWorker(t)
	doc := document.New("memo", document.Template{Body: "{{Batch}}", Fields: []string{"Batch"}})
	var out []string

	reg := printfn.NewRegistry()
	require.NoError(t, Register(reg, people()))
	c := printfn.NewChain(reg,
		printfn.WithRunID("run-7"),
		printfn.WithWorker(w),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(renderTerminal(&out)),
	)
	c.Props().Set(printfn.PropStampField, "Batch")
	require.NoError(t, c.AddFunction("stamp"))

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"run-7"}, out)
}

func TestStamp_UnknownFieldReportedAndChainContinues(t *testing.T) {
	w := testutil.StartWorker(t)
	doc := document.New("memo", document.Template{Body: "x", Fields: []string{"Batch"}})
	var out []string
	var reported []error

	reg := printfn.NewRegistry()
	require.NoError(t, Register(reg, people()))
	c := printfn.NewChain(reg,
		printfn.WithWorker(w),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(renderTerminal(&out)),
		printfn.WithReporter(engine.ReporterFunc(func(err error) { reported = append(reported, err) })),
	)
	require.NoError(t, c.AddFunction("stamp"))

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"x"}, out)
	require.Len(t, reported, 1)
	assert.True(t, engine.IsBindError(reported[0]))
	assert.ErrorIs(t, reported[0], document.ErrUnknownField)
}

func TestSelectionFromProps(t *testing.T) {
	props := printfn.NewPropertyBag()
	sel, err := SelectionFromProps(props)
	require.NoError(t, err)
	assert.Equal(t, All(), sel)

	props.Set(printfn.PropSelection, Range(1, 2))
	sel, err = SelectionFromProps(props)
	require.NoError(t, err)
	assert.Equal(t, Range(1, 2), sel)

	props.Set(printfn.PropSelection, "nope")
	_, err = SelectionFromProps(props)
	assert.Error(t, err)
}

// interruptingBinder cancels the run while City is being set and holds the
// worker until released, so the waiting side sees the interruption first.
type interruptingBinder struct {
	document.Binder
	cancel  context.CancelFunc
	release chan struct{}
}

func (b *interruptingBinder) SetField(ctx context.Context, name, value string) error {
	if name == "City" {
		b.cancel()
		<-b.release
	}
	return b.Binder.SetField(ctx, name, value)
}

func TestMailMerge_InterruptedBindIsCancellation(t *testing.T) {
	w := testutil.StartWorker(t)
	doc := letter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	binder := &interruptingBinder{Binder: document.NewBinder(doc), cancel: cancel, release: make(chan struct{})}
	defer close(binder.release)

	var reported []error
	reg := printfn.NewRegistry()
	require.NoError(t, Register(reg, people()))
	var out []string
	c := printfn.NewChain(reg,
		printfn.WithLogger(zaptest.NewLogger(t)),
		printfn.WithReporter(engine.ReporterFunc(func(err error) { reported = append(reported, err) })),
		printfn.WithWorker(w),
		printfn.WithDocument(doc, binder),
		printfn.WithTerminal(renderTerminal(&out)),
	)
	stop := context.AfterFunc(ctx, c.Cancel)
	defer stop()
	require.NoError(t, c.AddFunction("mailmerge"))

	require.NoError(t, c.Run(ctx))
	assert.True(t, c.Cancelled())
	assert.NoError(t, c.Err())
	assert.Empty(t, reported, "a cancelled run reports nothing")
	assert.Empty(t, out)
	assert.Equal(t, 0, c.Props().Int(PropProcessed, 0))
}
