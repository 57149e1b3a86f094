package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/store"
)

// DefaultDatabase is the run journal used when --db is not given.
const DefaultDatabase = "printmerge.db"

// workerStopTimeout bounds how long close waits for queued events.
const workerStopTimeout = 5 * time.Second

// session is the runtime one merge or simulate command works in: logger,
// tracer, error reporter, a started worker and the open run journal.
type session struct {
	logger   *zap.Logger
	tp       trace.TracerProvider
	reporter *engine.LogReporter
	worker   *engine.Worker
	store    *store.Store

	shutdownTracer func(context.Context) error
	cancelWorker   context.CancelFunc
}

// newLogger builds the console logger on w: debug level when verbose,
// info otherwise.
func newLogger(opts *RootOptions, w zapcore.WriteSyncer) *zap.Logger {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, w, level))
}

// newTracerProvider returns a provider exporting spans to w when --trace
// is set and the global (no-op unless configured) provider otherwise.
func newTracerProvider(opts *RootOptions, w io.Writer) (trace.TracerProvider, func(context.Context) error, error) {
	if !opts.Trace {
		return otel.GetTracerProvider(), func(context.Context) error { return nil }, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return tp, tp.Shutdown, nil
}

// openSession starts everything a run needs. Failures of the journal are
// returned as is; the caller decides the exit code.
func openSession(cmd *cobra.Command, opts *RootOptions, dbPath string, formatter *OutputFormatter) (*session, error) {
	// Logs, spans and reported failures share stderr from several
	// goroutines.
	errOut := zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr()))
	formatter.ErrWriter = errOut

	logger := newLogger(opts, errOut)
	tp, shutdown, err := newTracerProvider(opts, errOut)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}

	reporter := engine.NewLogReporter(logger, func(err error) {
		formatter.Warn("%v", err)
	})
	worker := engine.NewWorker(engine.WithLogger(logger), engine.WithReporter(reporter))
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	return &session{
		logger:         logger,
		tp:             tp,
		reporter:       reporter,
		worker:         worker,
		store:          st,
		shutdownTracer: shutdown,
		cancelWorker:   cancel,
	}, nil
}

// close stops the worker after its queue drains, then closes the journal
// and flushes spans and logs.
func (s *session) close() error {
	s.worker.Stop()
	select {
	case <-s.worker.Done():
	case <-time.After(workerStopTimeout):
		s.logger.Warn("worker did not drain in time")
	}
	s.cancelWorker()

	err := s.store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), workerStopTimeout)
	defer cancel()
	err = errors.Join(err, s.shutdownTracer(ctx))
	_ = s.logger.Sync()
	return err
}

// commandContext returns the command's context, cancelled on SIGINT or
// SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
