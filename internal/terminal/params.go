// Package terminal provides the output actions a print chain performs when
// it is exhausted: exporting one file per production or printing to a
// writer.
//
// Both actions ask a Prompter for their parameters once per run and keep
// the answer in the run's PropertyBag, so later productions of the same run
// reuse it without asking again.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/printfn"
)

// Property keys shared by all terminal actions.
const (
	// PropParams holds the Params chosen for this run.
	PropParams = "terminal.params"
	// PropSkipParams is set once PropParams is valid; the prompt is skipped
	// while it is true.
	PropSkipParams = "terminal.params.skip"
)

// ErrNoDocument is returned when a production has no document to render.
var ErrNoDocument = errors.New("production has no document")

// Params are the user-chosen settings of a terminal action.
type Params map[string]string

// Prompter asks the user for terminal parameters. Returning an error
// wrapping printfn.ErrCancelled declines the run.
type Prompter interface {
	Prompt(ctx context.Context, action string, defaults Params) (Params, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, action string, defaults Params) (Params, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, action string, defaults Params) (Params, error) {
	return f(ctx, action, defaults)
}

// StaticPrompter answers every prompt with fixed values merged over the
// defaults. It is the non-interactive prompter used by the CLI.
type StaticPrompter struct {
	Values  Params
	Decline bool

	mu    sync.Mutex
	asked int
}

// Prompt implements Prompter.
func (p *StaticPrompter) Prompt(_ context.Context, action string, defaults Params) (Params, error) {
	p.mu.Lock()
	p.asked++
	p.mu.Unlock()
	if p.Decline {
		return nil, fmt.Errorf("%s parameters declined: %w", action, printfn.ErrCancelled)
	}
	out := maps.Clone(defaults)
	if out == nil {
		out = Params{}
	}
	maps.Copy(out, p.Values)
	return out, nil
}

// Asked returns how many times Prompt was called.
func (p *StaticPrompter) Asked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asked
}

// prepareParams returns the run's parameters, prompting only when the
// PropertyBag does not already hold them.
func prepareParams(ctx context.Context, props *printfn.PropertyBag, prompter Prompter, action string, defaults Params) (Params, error) {
	if props.Bool(PropSkipParams, false) {
		if v, ok := props.Get(PropParams); ok {
			if params, ok := v.(Params); ok {
				return params, nil
			}
		}
	}

	params := maps.Clone(defaults)
	if prompter != nil {
		var err error
		params, err = prompter.Prompt(ctx, action, defaults)
		if err != nil {
			return nil, err
		}
	}
	props.Set(PropParams, params)
	props.Set(PropSkipParams, true)
	return params, nil
}

// rendered is the document state one production needs.
type rendered struct {
	text   string
	fields map[string]string
}

// render reads the document on its worker.
func render(ctx context.Context, p printfn.Production) (rendered, error) {
	if p.Document == nil {
		return rendered{}, ErrNoDocument
	}
	var out rendered
	read := func(context.Context) error {
		out.text = p.Document.Render()
		out.fields = p.Document.Snapshot().Fields
		return nil
	}
	if p.Worker == nil {
		return out, read(ctx)
	}
	err := p.Worker.Call(ctx, engine.EventKindFunc, "render", read)
	return out, err
}

// expandName fills a name pattern from field values. {{#}} is the
// production number.
func expandName(pattern string, number int, fields map[string]string) string {
	return document.Expand(pattern, func(name string) string {
		if name == "#" {
			return fmt.Sprint(number)
		}
		return fields[name]
	})
}
