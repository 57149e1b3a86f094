package printfn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
)

// TracerName is the instrumentation name used for chain and merge spans.
const TracerName = "printmerge"

// errStageExited is the failure of a stage body that ended the goroutine
// without returning, through runtime.Goexit.
var errStageExited = errors.New("print function exited without returning")

// Production is what the terminal action receives for one output.
type Production struct {
	RunID    string
	Number   int // 1-based count of productions in this run
	Props    *PropertyBag
	Document *document.Document
	Worker   *engine.Worker
}

// Terminal performs the concrete output when the chain is exhausted.
type Terminal interface {
	Produce(ctx context.Context, p Production) error
}

// Preparer is implemented by terminals that ask for parameters before the
// first output. Returning ErrCancelled aborts the run without an error.
type Preparer interface {
	Prepare(ctx context.Context, props *PropertyBag) error
}

// TerminalFunc adapts a function to Terminal.
type TerminalFunc func(ctx context.Context, p Production) error

// Produce calls f.
func (f TerminalFunc) Produce(ctx context.Context, p Production) error {
	return f(ctx, p)
}

type stageEntry struct {
	desc Descriptor
	fn   Func
}

// Chain is the master coordinator of one print run: the ordered print
// functions, the shared PropertyBag, the cancellation flag and the optional
// progress aggregator.
//
// Each stage body runs on its own goroutine and is joined by whoever
// advanced into it, so stages execute strictly in position order. A stage
// error or panic is caught at the join, reported, and cancels the run.
//
// Thread-safety: AddFunction, Cancel and the Stage API are safe for
// concurrent use. Run must not be called concurrently with itself.
type Chain struct {
	registry *Registry
	logger   *zap.Logger
	tracer   trace.Tracer
	reporter engine.ErrorReporter
	worker   *engine.Worker
	doc      *document.Document
	binder   document.Binder
	terminal Terminal
	progress *Progress
	runID    string
	props    *PropertyBag

	mu     sync.Mutex
	stages []stageEntry
	err    error

	cancelled   atomic.Bool
	productions atomic.Int64
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the chain's logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger }
}

// WithTracerProvider sets where chain spans go. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) ChainOption {
	return func(c *Chain) { c.tracer = tp.Tracer(TracerName) }
}

// WithReporter sets the error surface for stage and terminal failures.
func WithReporter(r engine.ErrorReporter) ChainOption {
	return func(c *Chain) { c.reporter = r }
}

// WithWorker sets the worker that owns the document.
func WithWorker(w *engine.Worker) ChainOption {
	return func(c *Chain) { c.worker = w }
}

// WithDocument sets the document and the binder that mutates it.
func WithDocument(doc *document.Document, binder document.Binder) ChainOption {
	return func(c *Chain) {
		c.doc = doc
		c.binder = binder
	}
}

// WithTerminal sets the terminal action.
func WithTerminal(t Terminal) ChainOption {
	return func(c *Chain) { c.terminal = t }
}

// WithProgress attaches a progress aggregator. Its Cancel cancels the chain.
func WithProgress(p *Progress) ChainOption {
	return func(c *Chain) { c.progress = p }
}

// WithRunID sets the run id used in logs, errors and productions.
func WithRunID(id string) ChainOption {
	return func(c *Chain) { c.runID = id }
}

// WithProps seeds the chain with an existing PropertyBag.
func WithProps(props *PropertyBag) ChainOption {
	return func(c *Chain) { c.props = props }
}

// NewChain creates an empty chain that resolves function names in registry.
func NewChain(registry *Registry, opts ...ChainOption) *Chain {
	c := &Chain{
		registry: registry,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = engine.NewLogReporter(c.logger, nil)
	}
	if c.props == nil {
		c.props = NewPropertyBag()
	}
	if c.progress != nil {
		c.progress.bindCancel(c.Cancel)
	}
	c.logger = c.logger.With(zap.String("run_id", c.runID))
	return c
}

// AddFunction inserts the named print function at the position given by
// its ordering key. Unknown names fail before anything runs.
func (c *Chain) AddFunction(name string) error {
	fn, desc, err := c.registry.Lookup(name)
	if err != nil {
		var re *engine.RuntimeError
		if errors.As(err, &re) {
			re.RunID = c.runID
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byName := make(map[string]Func, len(c.stages)+1)
	descs := make([]Descriptor, 0, len(c.stages)+1)
	for _, s := range c.stages {
		byName[s.desc.Name] = s.fn
		descs = append(descs, s.desc)
	}
	if _, dup := byName[name]; dup {
		return nil
	}
	byName[name] = fn
	descs = append(descs, desc)

	stages := make([]stageEntry, 0, len(descs))
	for _, d := range sortDescriptors(descs) {
		stages = append(stages, stageEntry{desc: d, fn: byName[d.Name]})
	}
	c.stages = stages
	c.logger.Debug("print function added", zap.String("function", name), zap.Int("order", desc.Order))
	return nil
}

// Functions returns the chain's functions in execution order.
func (c *Chain) Functions() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Descriptor, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.desc
	}
	return out
}

// Run executes the chain once from stage 0 and blocks until the whole
// chain has finished.
//
// An empty chain produces one output directly, after the terminal has asked
// for its parameters. Run returns the first stage or terminal failure, or nil
// when the run completed or was cancelled; use Cancelled to tell the two
// apart.
func (c *Chain) Run(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "chain.run", trace.WithAttributes(
		attribute.String("run_id", c.runID),
	))
	defer span.End()

	if _, ok := c.stageAt(0); !ok {
		c.logger.Debug("empty chain, producing directly")
		return c.finish(span, c.produce(ctx))
	}

	return c.finish(span, c.runStage(ctx, 0))
}

func (c *Chain) finish(span trace.Span, err error) error {
	if err != nil && !errors.Is(err, ErrCancelled) {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.Bool("cancelled", c.Cancelled()),
		attribute.Int64("productions", c.productions.Load()),
	)
	return nil
}

// Cancel permanently sets the cancellation flag. Subsequent Advance calls
// return ErrCancelled without effect; running stages are expected to poll
// Cancelled and return early.
func (c *Chain) Cancel() {
	if c.cancelled.CompareAndSwap(false, true) {
		c.logger.Info("print run cancelled")
	}
}

// Cancelled reports whether the run has been cancelled.
func (c *Chain) Cancelled() bool {
	return c.cancelled.Load()
}

// Props returns the run's shared PropertyBag.
func (c *Chain) Props() *PropertyBag {
	return c.props
}

// Progress returns the attached aggregator, or nil.
func (c *Chain) Progress() *Progress {
	return c.progress
}

// Productions returns how many outputs the terminal produced.
func (c *Chain) Productions() int {
	return int(c.productions.Load())
}

// RunID returns the run id.
func (c *Chain) RunID() string {
	return c.runID
}

// Err returns the first stage or terminal failure of the run.
func (c *Chain) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Chain) stageAt(pos int) (stageEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < 0 || pos >= len(c.stages) {
		return stageEntry{}, false
	}
	return c.stages[pos], true
}

// runStage runs the function at pos on a new goroutine and joins it.
func (c *Chain) runStage(ctx context.Context, pos int) error {
	entry, _ := c.stageAt(pos)
	stage := &Stage{chain: c, position: pos, name: entry.desc.Name}

	ctx, span := c.tracer.Start(ctx, "chain.stage", trace.WithAttributes(
		attribute.String("function", entry.desc.Name),
		attribute.Int("position", pos),
	))
	defer span.End()

	errc := make(chan error, 1)
	go func() {
		// Send from the deferred func so a panic or runtime.Goexit in the
		// body still releases the join.
		err := errStageExited
		defer func() {
			if p := recover(); p != nil {
				err = &engine.PanicError{Value: p}
			}
			errc <- err
		}()
		err = entry.fn(ctx, stage)
	}()
	err := <-errc

	if err == nil {
		return nil
	}
	if c.interruptedByCancel(ctx, err) {
		err = ErrCancelled
	}
	if errors.Is(err, ErrCancelled) {
		c.Cancel()
		return ErrCancelled
	}

	span.SetStatus(codes.Error, err.Error())
	// Failures from deeper stages or the terminal were reported where they
	// happened and only need to travel up.
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		c.Cancel()
		return err
	}

	serr := engine.NewStageError(entry.desc.Name, pos, err)
	serr.RunID = c.runID
	c.logger.Error("print function failed",
		zap.String("function", entry.desc.Name),
		zap.Int("stage", pos),
		zap.Error(err),
	)
	c.fail(serr)
	c.Cancel()
	return serr
}

// interruptedByCancel reports whether err is a worker wait cut short
// because this run was cancelled or its context ended.
func (c *Chain) interruptedByCancel(ctx context.Context, err error) bool {
	return errors.Is(err, engine.ErrInterrupted) && (c.Cancelled() || ctx.Err() != nil)
}

func (c *Chain) prepare(ctx context.Context) error {
	p, ok := c.terminal.(Preparer)
	if !ok {
		return nil
	}
	if err := p.Prepare(ctx, c.props); err != nil {
		if errors.Is(err, ErrCancelled) {
			c.Cancel()
			return ErrCancelled
		}
		terr := engine.NewTerminalError(err)
		terr.RunID = c.runID
		c.fail(terr)
		c.Cancel()
		return terr
	}
	return nil
}

// produce performs the terminal action once, preparing it first. Preparers
// only prompt on the first call of a run; later calls find their parameters
// in the PropertyBag.
func (c *Chain) produce(ctx context.Context) error {
	if c.Cancelled() {
		return ErrCancelled
	}
	if err := c.prepare(ctx); err != nil {
		return err
	}
	n := int(c.productions.Add(1))

	ctx, span := c.tracer.Start(ctx, "chain.terminal", trace.WithAttributes(
		attribute.Int("production", n),
	))
	defer span.End()

	if c.terminal == nil {
		c.logger.Debug("production without terminal", zap.Int("production", n))
		return nil
	}

	err := c.terminal.Produce(ctx, Production{
		RunID:    c.runID,
		Number:   n,
		Props:    c.props,
		Document: c.doc,
		Worker:   c.worker,
	})
	if err == nil {
		c.logger.Debug("output produced", zap.Int("production", n))
		return nil
	}
	if c.interruptedByCancel(ctx, err) {
		err = ErrCancelled
	}
	if errors.Is(err, ErrCancelled) {
		c.Cancel()
		return ErrCancelled
	}

	span.SetStatus(codes.Error, err.Error())
	terr := engine.NewTerminalError(err)
	terr.RunID = c.runID
	c.logger.Error("terminal action failed", zap.Int("production", n), zap.Error(err))
	c.fail(terr)
	c.Cancel()
	return terr
}

// fail records and reports the first failure of the run.
func (c *Chain) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.reporter.ReportError(err)
}
