package terminal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/printfn"
)

// Parameter names used by FileExporter.
const (
	ParamDir     = "dir"
	ParamPattern = "pattern"
)

// DefaultPattern names exported files after the production number.
const DefaultPattern = "document-{{#}}.txt"

// FileExporter writes one file per production.
//
// The file name comes from the "pattern" parameter; {{Field}} placeholders
// take the bound field values and {{#}} the production number. Path
// separators in expanded values are replaced so every file lands in the
// "dir" parameter's directory.
type FileExporter struct {
	dir      string
	pattern  string
	prompter Prompter
	logger   *zap.Logger

	mu    sync.Mutex
	files []string
}

// FileOption configures a FileExporter.
type FileOption func(*FileExporter)

// WithPrompter sets the parameters prompter. Default: none, the defaults
// are used as-is.
func WithPrompter(p Prompter) FileOption {
	return func(e *FileExporter) { e.prompter = p }
}

// WithPattern sets the default file name pattern.
func WithPattern(pattern string) FileOption {
	return func(e *FileExporter) { e.pattern = pattern }
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) FileOption {
	return func(e *FileExporter) { e.logger = logger }
}

// NewFileExporter creates an exporter writing into dir by default.
func NewFileExporter(dir string, opts ...FileOption) *FileExporter {
	e := &FileExporter{
		dir:     dir,
		pattern: DefaultPattern,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepare implements printfn.Preparer.
func (e *FileExporter) Prepare(ctx context.Context, props *printfn.PropertyBag) error {
	_, err := prepareParams(ctx, props, e.prompter, "export", Params{
		ParamDir:     e.dir,
		ParamPattern: e.pattern,
	})
	return err
}

// Produce implements printfn.Terminal.
func (e *FileExporter) Produce(ctx context.Context, p printfn.Production) error {
	params, err := prepareParams(ctx, p.Props, e.prompter, "export", Params{
		ParamDir:     e.dir,
		ParamPattern: e.pattern,
	})
	if err != nil {
		return err
	}

	doc, err := render(ctx, p)
	if err != nil {
		return err
	}

	name := sanitizeName(expandName(params[ParamPattern], p.Number, doc.fields))
	if name == "" {
		name = fmt.Sprintf("document-%d.txt", p.Number)
	}
	dir := params[ParamDir]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc.text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	e.mu.Lock()
	e.files = append(e.files, path)
	e.mu.Unlock()
	e.logger.Debug("document exported", zap.String("path", path), zap.Int("production", p.Number))
	return nil
}

// Files returns the written paths in production order.
func (e *FileExporter) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}
