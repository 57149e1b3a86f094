package terminal

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/printfn"
)

// ParamPrinter names the target printer in WriterPrinter parameters.
const ParamPrinter = "printer"

// formFeed separates documents on the printer stream.
const formFeed = "\f"

// WriterPrinter prints every production to a writer, separated by form
// feeds.
type WriterPrinter struct {
	w        io.Writer
	printer  string
	prompter Prompter
	logger   *zap.Logger

	mu      sync.Mutex
	printed int
}

// NewWriterPrinter creates a printer over w. printer is the default
// printer name offered to the prompter.
func NewWriterPrinter(w io.Writer, printer string, prompter Prompter, logger *zap.Logger) *WriterPrinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriterPrinter{w: w, printer: printer, prompter: prompter, logger: logger}
}

// Prepare implements printfn.Preparer.
func (p *WriterPrinter) Prepare(ctx context.Context, props *printfn.PropertyBag) error {
	_, err := prepareParams(ctx, props, p.prompter, "print", Params{ParamPrinter: p.printer})
	return err
}

// Produce implements printfn.Terminal.
func (p *WriterPrinter) Produce(ctx context.Context, prod printfn.Production) error {
	params, err := prepareParams(ctx, prod.Props, p.prompter, "print", Params{ParamPrinter: p.printer})
	if err != nil {
		return err
	}
	doc, err := render(ctx, prod)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > 0 {
		if _, err := io.WriteString(p.w, formFeed); err != nil {
			return fmt.Errorf("print: %w", err)
		}
	}
	if _, err := io.WriteString(p.w, doc.text); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	p.printed++
	p.logger.Debug("document printed",
		zap.String("printer", params[ParamPrinter]),
		zap.Int("production", prod.Number),
	)
	return nil
}

// Printed returns the number of documents written.
func (p *WriterPrinter) Printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}
