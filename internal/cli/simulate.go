package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/printmerge/internal/canon"
	"github.com/roach88/printmerge/internal/dataset"
	"github.com/roach88/printmerge/internal/document"
	"github.com/roach88/printmerge/internal/engine"
	"github.com/roach88/printmerge/internal/job"
	"github.com/roach88/printmerge/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database  string
	Selection string

	// RunIDs allows overriding the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// SimulateResult is the JSON payload of the simulate command.
type SimulateResult struct {
	RunID    string            `json:"run_id"`
	Job      string            `json:"job"`
	Status   store.Status      `json:"status"`
	Rows     int               `json:"rows"`
	Captures []dataset.Capture `json:"captures"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return newSimulateCommand(&SimulateOptions{RootOptions: rootOpts})
}

func newSimulateCommand(opts *SimulateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <job.yaml>",
		Short: "Bind every selected row and capture the document state",
		Long: `Run a merge job without printing.

Each selected row is bound into the document exactly as merge would, then
the field values and visibility groups are captured. Captures are stored
in the journal and printed as canonical JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", DefaultDatabase, "path to the run journal")
	cmd.Flags().StringVar(&opts.Selection, "selection", "", "rows to simulate, overrides the job (all | 3-7 | 1,4,9)")

	return cmd
}

func runSimulate(opts *SimulateOptions, jobPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	plan, err := loadPlan(formatter, jobPath, opts.Selection)
	if err != nil {
		return err
	}
	return simulatePlan(opts, plan, formatter, cmd)
}

// simulatePlan binds every selected row of plan and records the captures.
func simulatePlan(opts *SimulateOptions, plan *job.Plan, formatter *OutputFormatter, cmd *cobra.Command) error {
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

	ctx, stop := commandContext(cmd)
	defer stop()

	runID := runIDs(opts.RunIDs).Generate()
	doc := document.New(plan.Name, plan.Template)
	binder := document.NewBinder(doc)

	err = sess.store.BeginRun(ctx, store.Run{
		ID:        runID,
		JobName:   plan.Name,
		Mode:      store.ModeSimulate,
		Selection: plan.Selection.String(),
	})
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to record run", err.Error())
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	// The stamp field carries the run id exactly as the stamp function
	// would set it during a merge.
	stampField := plan.Output.StampField
	err = sess.worker.Call(ctx, engine.EventKindSetField, stampField, func(ctx context.Context) error {
		return binder.SetField(ctx, stampField, runID)
	})
	if err != nil {
		sess.reporter.ReportError(engine.NewBindError(stampField, -1, err))
	}

	it := dataset.NewIterator(sess.worker, binder, plan.Source,
		dataset.WithLogger(sess.logger),
		dataset.WithTracerProvider(sess.tp),
		dataset.WithReporter(sess.reporter),
		dataset.WithRunID(runID),
	)
	acc := dataset.NewAccumulator(sess.worker, doc)
	stats, runErr := it.Run(ctx, plan.Selection.Resolve(plan.Source.RowCount()), acc)

	captures := acc.Captures()
	status, runErr := recordSimulation(ctx, sess.store, sess.logger, runID, captures, stats, runErr)

	if runErr != nil {
		_ = formatter.Error(ErrCodeRunFailed, "simulation failed", runErr.Error())
		return WrapExitError(ExitFailure, "simulation failed", runErr)
	}

	if opts.Format == "json" {
		return formatter.Success(SimulateResult{
			RunID:    runID,
			Job:      plan.Name,
			Status:   status,
			Rows:     stats.Processed,
			Captures: captures,
		})
	}
	formatter.VerboseLog("%s simulation %s: %d rows", status, runID, stats.Processed)
	return printCanonical(cmd, dataset.CanonicalCaptures(captures))
}

// recordSimulation stores the captures of a finished iteration and closes
// the run. The journal writes outlive ctx so an interrupted simulation
// keeps the rows it captured and is recorded as cancelled.
func recordSimulation(ctx context.Context, st *store.Store, logger *zap.Logger, runID string,
	captures []dataset.Capture, stats dataset.Stats, runErr error) (store.Status, error) {
	ctx = context.WithoutCancel(ctx)
	if runErr == nil {
		runErr = st.WriteCaptures(ctx, toStoreCaptures(runID, captures))
	}

	status := runStatus(runErr, stats.Cancelled)
	outcome := store.Outcome{Status: status, RowsProcessed: stats.Processed}
	if runErr != nil {
		outcome.Error = runErr.Error()
	}
	if err := st.FinishRun(ctx, runID, outcome); err != nil {
		logger.Error("failed to finish run", zap.String("run_id", runID), zap.Error(err))
	}
	return status, runErr
}

// printCanonical writes v as one line of canonical JSON.
func printCanonical(cmd *cobra.Command, v any) error {
	data, err := canon.MarshalCanonical(v)
	if err != nil {
		return WrapExitError(ExitFailure, "encode captures", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func toStoreCaptures(runID string, captures []dataset.Capture) []store.Capture {
	out := make([]store.Capture, len(captures))
	for i, c := range captures {
		out[i] = store.Capture{
			RunID:      runID,
			Position:   c.Position,
			Index:      c.Index,
			Fields:     c.Fields,
			Visibility: c.Visibility,
		}
	}
	return out
}

func fromStoreCaptures(captures []store.Capture) []dataset.Capture {
	out := make([]dataset.Capture, len(captures))
	for i, c := range captures {
		out[i] = dataset.Capture{
			Index:      c.Index,
			Position:   c.Position,
			Fields:     c.Fields,
			Visibility: c.Visibility,
		}
	}
	return out
}
