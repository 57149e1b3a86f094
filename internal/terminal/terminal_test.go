package terminal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/printfn"
	"github.com/roach88/printmerge/internal/testutil"
)

func invoiceDoc(t *testing.T, customer string) *document.Document {
	t.Helper()
	doc := document.New("invoice", document.Template{
		Body:   "Invoice for {{Customer}}",
		Fields: []string{"Customer"},
	})
	require.NoError(t, doc.SetField("Customer", customer))
	return doc
}

func TestFileExporter_WritesOneFilePerProduction(t *testing.T) {
	w := testutil.StartWorker(t)
	dir := t.TempDir()
	prompter := &StaticPrompter{Values: Params{ParamPattern: "{{Customer}}-{{#}}.txt"}}
	exp := NewFileExporter(dir, WithPrompter(prompter), WithLogger(zaptest.NewLogger(t)))

	props := printfn.NewPropertyBag()
	doc := invoiceDoc(t, "ACME/West")
	for n := 1; n <= 2; n++ {
		require.NoError(t, exp.Produce(context.Background(), printfn.Production{
			Number: n, Props: props, Document: doc, Worker: w,
		}))
	}

	assert.Equal(t, 1, prompter.Asked(), "parameters are asked once per run")
	assert.True(t, props.Bool(PropSkipParams, false))

	files := exp.Files()
	require.Equal(t, []string{
		filepath.Join(dir, "ACME_West-1.txt"),
		filepath.Join(dir, "ACME_West-2.txt"),
	}, files)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "Invoice for ACME/West", string(body))
}

func TestFileExporter_InChain(t *testing.T) {
	w := testutil.StartWorker(t)
	dir := t.TempDir()
	exp := NewFileExporter(dir)
	doc := invoiceDoc(t, "Initech")

	reg := printfn.NewRegistry()
	require.NoError(t, printfn.RegisterBuiltins(reg))
	c := printfn.NewChain(reg,
		printfn.WithWorker(w),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(exp),
	)
	c.Props().Set(printfn.PropCopies, 3)
	require.NoError(t, c.AddFunction("copies"))
	require.NoError(t, c.Run(context.Background()))

	assert.Len(t, exp.Files(), 3)
	assert.FileExists(t, filepath.Join(dir, "document-3.txt"))
}

func TestFileExporter_DeclinedPromptCancelsRun(t *testing.T) {
	exp := NewFileExporter(t.TempDir(), WithPrompter(&StaticPrompter{Decline: true}))
	c := printfn.NewChain(printfn.NewRegistry(), printfn.WithTerminal(exp))

	require.NoError(t, c.Run(context.Background()))
	assert.True(t, c.Cancelled())
	assert.Empty(t, exp.Files())
}

func TestFileExporter_NoDocument(t *testing.T) {
	exp := NewFileExporter(t.TempDir())
	err := exp.Produce(context.Background(), printfn.Production{Number: 1, Props: printfn.NewPropertyBag()})
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestWriterPrinter_SeparatesWithFormFeed(t *testing.T) {
	w := testutil.StartWorker(t)
	var buf bytes.Buffer
	var asked []Params
	prompter := PrompterFunc(func(_ context.Context, action string, defaults Params) (Params, error) {
		assert.Equal(t, "print", action)
		asked = append(asked, defaults)
		return Params{ParamPrinter: "laser-2"}, nil
	})
	pr := NewWriterPrinter(&buf, "default", prompter, zaptest.NewLogger(t))

	props := printfn.NewPropertyBag()
	require.NoError(t, pr.Prepare(context.Background(), props))
	for _, who := range []string{"Ada", "Grace"} {
		require.NoError(t, pr.Produce(context.Background(), printfn.Production{
			Props: props, Document: invoiceDoc(t, who), Worker: w,
		}))
	}

	assert.Equal(t, "Invoice for Ada\fInvoice for Grace", buf.String())
	assert.Equal(t, 2, pr.Printed())
	assert.Equal(t, []Params{{ParamPrinter: "default"}}, asked)
	v, _ := props.Get(PropParams)
	assert.Equal(t, Params{ParamPrinter: "laser-2"}, v)
}

func TestExpandName(t *testing.T) {
	got := expandName("{{Last}}_{{#}}.txt", 7, map[string]string{"Last": "Hopper"})
	assert.Equal(t, "Hopper_7.txt", got)
}
