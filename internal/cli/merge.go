package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/dataset"
	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/job"
	"github.com/roach88/printmerge/internal/printfn"
	"github.com/roach88/printmerge/internal/store"
	"github.com/roach88/printmerge/internal/terminal"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Database  string
	Selection string
	Out       string
	Params    map[string]string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// MergeResult is the summary of one merge run.
type MergeResult struct {
	RunID       string       `json:"run_id"`
	Job         string       `json:"job"`
	Status      store.Status `json:"status"`
	Rows        int          `json:"rows"`
	Productions int          `json:"productions"`
	Files       []string     `json:"files,omitempty"`
}

func (r MergeResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d rows, %d documents (run %s)",
		statusLabel(r.Status), r.Job, r.Rows, r.Productions, r.RunID)
	for _, f := range r.Files {
		fmt.Fprintf(&b, "\n  %s", f)
	}
	return b.String()
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	return newMergeCommand(&MergeOptions{RootOptions: rootOpts})
}

func newMergeCommand(opts *MergeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <job.yaml>",
		Short: "Merge a job and print or export one document per row",
		Long: `Run a merge job through its print function chain.

Every selected row is bound into the document and the remaining print
functions run once for it. The run is recorded in the journal. A job with
"simulate: true" is simulated instead, exactly as the simulate command does.

Example:
  printmerge merge letters.yaml --selection 2-5 --out ./letters
  printmerge merge invoices.yaml --param printer=laser-2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", DefaultDatabase, "path to the run journal")
	cmd.Flags().StringVar(&opts.Selection, "selection", "", "rows to merge, overrides the job (all | 3-7 | 1,4,9)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output directory (file) or spool file (printer)")
	cmd.Flags().StringToStringVar(&opts.Params, "param", nil, "terminal parameter answers (key=value)")

	return cmd
}

func runMerge(opts *MergeOptions, jobPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	plan, err := loadPlan(formatter, jobPath, opts.Selection)
	if err != nil {
		return err
	}
	if plan.Simulate {
		formatter.VerboseLog("%s is marked simulate, capturing instead of printing", plan.Name)
		return simulatePlan(&SimulateOptions{
			RootOptions: opts.RootOptions,
			Database:    opts.Database,
			Selection:   opts.Selection,
			RunIDs:      opts.RunIDs,
		}, plan, formatter, cmd)
	}

	sess, err := openSession(cmd, opts.RootOptions, opts.Database, formatter)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to open journal", err.Error())
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := sess.close(); closeErr != nil {
			sess.logger.Error("error closing session", zap.Error(closeErr))
		}
	}()

	out, err := newOutput(plan, opts, cmd.OutOrStdout(), sess.logger)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidRequest, "failed to open output", err.Error())
		return WrapExitError(ExitCommandError, "failed to open output", err)
	}
	defer out.close()

	runID := runIDs(opts.RunIDs).Generate()
	doc := document.New(plan.Name, plan.Template)

	reg := printfn.NewRegistry()
	if err := printfn.RegisterBuiltins(reg); err != nil {
		return WrapExitError(ExitFailure, "register print functions", err)
	}
	if err := dataset.Register(reg, plan.Source, dataset.WithTracerProvider(sess.tp)); err != nil {
		return WrapExitError(ExitFailure, "register print functions", err)
	}

	progress := printfn.NewProgress()
	progress.OnChange(func(s printfn.ProgressSnapshot) {
		formatter.VerboseLog("progress %d/%d", s.Value, s.Max)
	})

	chain := printfn.NewChain(reg,
		printfn.WithLogger(sess.logger),
		printfn.WithTracerProvider(sess.tp),
		printfn.WithReporter(sess.reporter),
		printfn.WithWorker(sess.worker),
		printfn.WithDocument(doc, document.NewBinder(doc)),
		printfn.WithTerminal(out.terminal),
		printfn.WithProgress(progress),
		printfn.WithRunID(runID),
	)
	chain.Props().Set(printfn.PropSelection, plan.Selection)
	chain.Props().Set(printfn.PropCopies, plan.Copies)
	chain.Props().Set(printfn.PropStampField, plan.Output.StampField)
	for _, name := range plan.Functions {
		if err := chain.AddFunction(name); err != nil {
			_ = formatter.Error(ErrCodeInvalidRequest, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid print function", err)
		}
	}

	ctx, stop := commandContext(cmd)
	defer stop()
	stopCancel := context.AfterFunc(ctx, chain.Cancel)
	defer stopCancel()

	err = sess.store.BeginRun(ctx, store.Run{
		ID:        runID,
		JobName:   plan.Name,
		Mode:      store.ModePrint,
		Selection: plan.Selection.String(),
	})
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to record run", err.Error())
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	runErr := chain.Run(ctx)
	if runErr == nil {
		runErr = chain.Err()
	}
	result := MergeResult{
		RunID:       runID,
		Job:         plan.Name,
		Status:      runStatus(runErr, chain.Cancelled()),
		Rows:        chain.Props().Int(dataset.PropProcessed, 0),
		Productions: chain.Productions(),
		Files:       out.files(),
	}

	outcome := store.Outcome{
		Status:        result.Status,
		RowsProcessed: result.Rows,
		Productions:   result.Productions,
	}
	if runErr != nil {
		outcome.Error = runErr.Error()
	}
	if err := sess.store.FinishRun(context.WithoutCancel(ctx), runID, outcome); err != nil {
		sess.logger.Error("failed to finish run", zap.String("run_id", runID), zap.Error(err))
	}

	if runErr != nil {
		_ = formatter.Error(ErrCodeRunFailed, "merge failed", runErr.Error())
		return WrapExitError(ExitFailure, "merge failed", runErr)
	}
	return formatter.Success(result)
}

// loadPlan loads and builds a job, applying a selection override.
func loadPlan(formatter *OutputFormatter, jobPath, selection string) (*job.Plan, error) {
	j, err := job.Load(jobPath)
	if err != nil {
		var verrs *job.ValidationErrors
		if errors.As(err, &verrs) {
			_ = formatter.Error(ErrCodeInvalidJob, "invalid job", verrs.Errors)
			return nil, WrapExitError(ExitFailure, "invalid job", err)
		}
		_ = formatter.Error(ErrCodeInvalidRequest, "failed to load job", err.Error())
		return nil, WrapExitError(ExitCommandError, "failed to load job", err)
	}

	plan, err := j.Build()
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidRequest, "failed to build job", err.Error())
		return nil, WrapExitError(ExitCommandError, "failed to build job", err)
	}

	if selection != "" {
		sel, err := dataset.ParseSelection(selection)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidRequest, "invalid selection", err.Error())
			return nil, WrapExitError(ExitCommandError, "invalid selection", err)
		}
		plan.Selection = sel
	}
	return plan, nil
}

// output is the terminal action of a merge plus what it needs closed.
type output struct {
	terminal printfn.Terminal
	files    func() []string
	close    func()
}

func newOutput(plan *job.Plan, opts *MergeOptions, stdout io.Writer, logger *zap.Logger) (*output, error) {
	prompter := &terminal.StaticPrompter{Values: terminal.Params(opts.Params)}

	if plan.Output.Kind == job.OutputPrinter {
		w, closeFn := stdout, func() {}
		if opts.Out != "" {
			f, err := os.Create(opts.Out)
			if err != nil {
				return nil, err
			}
			w, closeFn = f, func() { _ = f.Close() }
		}
		printer := plan.Output.Printer
		if printer == "" {
			printer = "default"
		}
		return &output{
			terminal: terminal.NewWriterPrinter(w, printer, prompter, logger),
			files:    func() []string { return nil },
			close:    closeFn,
		}, nil
	}

	dir := plan.Output.Dir
	if opts.Out != "" {
		dir = opts.Out
	}
	if dir == "" {
		dir = "."
	}
	fileOpts := []terminal.FileOption{terminal.WithPrompter(prompter), terminal.WithLogger(logger)}
	if plan.Output.Pattern != "" {
		fileOpts = append(fileOpts, terminal.WithPattern(plan.Output.Pattern))
	}
	exporter := terminal.NewFileExporter(dir, fileOpts...)
	return &output{
		terminal: exporter,
		files:    exporter.Files,
		close:    func() {},
	}, nil
}

func runIDs(g engine.RunIDGenerator) engine.RunIDGenerator {
	if g == nil {
		return engine.UUIDv7Generator{}
	}
	return g
}

func runStatus(err error, cancelled bool) store.Status {
	switch {
	case err != nil:
		return store.StatusFailed
	case cancelled:
		return store.StatusCancelled
	default:
		return store.StatusCompleted
	}
}

func statusLabel(s store.Status) string {
	switch s {
	case store.StatusCompleted:
		return successColor.Sprint(string(s))
	case store.StatusCancelled:
		return warnColor.Sprint(string(s))
	case store.StatusFailed:
		return errorColor.Sprint(string(s))
	default:
		return dimColor.Sprint(string(s))
	}
}
