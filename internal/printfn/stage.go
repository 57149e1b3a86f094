package printfn

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
)

// Stage is a print function's view of the chain, bound to its position.
// Stages are immutable and cheap; a new one is created every time the
// chain advances into a position.
type Stage struct {
	chain    *Chain
	position int
	name     string
}

// Advance runs the remainder of the chain once: the next function on a new
// goroutine, joined before Advance returns, or the terminal action when
// this is the last position.
//
// Once the run is cancelled Advance returns ErrCancelled without effect.
// Calling Advance N times produces N outputs.
func (s *Stage) Advance(ctx context.Context) error {
	c := s.chain
	if c.Cancelled() {
		return ErrCancelled
	}
	next := s.position + 1
	if _, ok := c.stageAt(next); ok {
		return c.runStage(ctx, next)
	}
	return c.produce(ctx)
}

// Position returns the stage's 0-based chain position.
func (s *Stage) Position() int { return s.position }

// FunctionName returns the name of the function running at this stage.
func (s *Stage) FunctionName() string { return s.name }

// Props returns the run's shared PropertyBag.
func (s *Stage) Props() *PropertyBag { return s.chain.props }

// Cancel cancels the whole run.
func (s *Stage) Cancel() { s.chain.Cancel() }

// Cancelled reports whether the run has been cancelled.
func (s *Stage) Cancelled() bool { return s.chain.Cancelled() }

// RunID returns the run id.
func (s *Stage) RunID() string { return s.chain.runID }

// Document returns the document being printed, or nil.
func (s *Stage) Document() *document.Document { return s.chain.doc }

// Binder returns the binder that mutates the document, or nil.
func (s *Stage) Binder() document.Binder { return s.chain.binder }

// Worker returns the worker that owns the document, or nil.
func (s *Stage) Worker() *engine.Worker { return s.chain.worker }

// Reporter returns the run's error surface.
func (s *Stage) Reporter() engine.ErrorReporter { return s.chain.reporter }

// Logger returns the chain logger annotated with this stage.
func (s *Stage) Logger() *zap.Logger {
	return s.chain.logger.With(zap.String("function", s.name), zap.Int("stage", s.position))
}

// SetProgressMax registers this stage's expected unit count with the
// run's progress aggregator. 0 unregisters. No-op without an aggregator.
func (s *Stage) SetProgressMax(n int) {
	if p := s.chain.progress; p != nil {
		p.SetMax(s.progressKey(), n)
	}
}

// SetProgressValue reports this stage's completed unit count.
func (s *Stage) SetProgressValue(n int) {
	if p := s.chain.progress; p != nil {
		p.SetValue(s.progressKey(), n)
	}
}

// SetProgressMessage overrides the run's status text.
func (s *Stage) SetProgressMessage(msg string) {
	if p := s.chain.progress; p != nil {
		p.SetMessage(msg)
	}
}

func (s *Stage) progressKey() string {
	return fmt.Sprintf("%d:%s", s.position, s.name)
}
