package engine

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrorReporter is the error surface of a print run. Implementations log the
// error and may show it to the user. ReportError must never panic.
type ErrorReporter interface {
	ReportError(err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(err error)

// ReportError calls f(err).
func (f ReporterFunc) ReportError(err error) {
	f(err)
}

// LogReporter logs every distinct failure once and forwards it to an
// optional notify callback (the user-visible message).
//
// Failures are deduplicated by code and message, so a binder that fails the
// same way for every row produces a single report. Cancellation is never
// reported.
//
// Thread-safety: LogReporter is safe for concurrent use.
type LogReporter struct {
	logger *zap.Logger
	notify func(err error)

	mu         sync.Mutex
	seen       map[string]struct{}
	suppressed int
}

// NewLogReporter creates a reporter. notify may be nil.
func NewLogReporter(logger *zap.Logger, notify func(err error)) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{
		logger: logger,
		notify: notify,
		seen:   make(map[string]struct{}),
	}
}

// ReportError implements ErrorReporter.
func (r *LogReporter) ReportError(err error) {
	if err == nil || errors.Is(err, ErrCancelled) {
		return
	}

	key := dedupKey(err)
	r.mu.Lock()
	_, dup := r.seen[key]
	if dup {
		r.suppressed++
	} else {
		r.seen[key] = struct{}{}
	}
	r.mu.Unlock()

	if dup {
		r.logger.Debug("suppressed duplicate error", zap.String("key", key))
		return
	}

	r.logger.Error("print run error", zap.Error(err))
	r.forward(err)
}

func (r *LogReporter) forward(err error) {
	if r.notify == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("error notification panicked", zap.Any("panic", p))
		}
	}()
	r.notify(err)
}

// Reported returns the number of distinct failures reported so far.
func (r *LogReporter) Reported() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Suppressed returns the number of duplicate reports that were dropped.
func (r *LogReporter) Suppressed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}

// dedupKey identifies a failure class. Runtime errors are keyed by code and
// message; details such as row numbers do not make a failure distinct.
func dedupKey(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code) + "|" + re.Message
	}
	return err.Error()
}
