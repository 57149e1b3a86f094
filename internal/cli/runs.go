package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/printmerge/internal/dataset"
	"github.com/roach88/printmerge/internal/store"
)

// RunList is the text/JSON view of the journal.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	for i, r := range l.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-8s %s  %s  rows=%d documents=%d",
			r.ID, r.Mode, statusLabel(r.Status), r.JobName, r.RowsProcessed, r.Productions)
		if r.Error != "" {
			fmt.Fprintf(&b, "  %s", dimColor.Sprint(r.Error))
		}
	}
	return b.String()
}

// CaptureList holds a simulation run's captures.
type CaptureList struct {
	RunID    string            `json:"run_id"`
	Captures []dataset.Capture `json:"captures"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List recorded runs in journal order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openJournal(formatter, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(commandCtx(cmd))
			if err != nil {
				_ = formatter.Error(ErrCodeDatabase, "failed to list runs", err.Error())
				return WrapExitError(ExitCommandError, "failed to list runs", err)
			}
			return formatter.Success(RunList{Runs: runs})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", DefaultDatabase, "path to the run journal")
	return cmd
}

// NewCapturesCommand creates the captures command.
func NewCapturesCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "captures <run-id>",
		Short: "Print the captures of a simulation run",
		Long: `Print the captures stored for a simulation run in selection order.
Text output is canonical JSON, byte-identical to what simulate printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openJournal(formatter, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := commandCtx(cmd)
			runID := args[0]
			if _, err := st.ReadRun(ctx, runID); err != nil {
				if errors.Is(err, store.ErrRunNotFound) {
					_ = formatter.Error(ErrCodeInvalidRequest, fmt.Sprintf("run %s not found", runID), nil)
					return WrapExitError(ExitCommandError, "run not found", err)
				}
				_ = formatter.Error(ErrCodeDatabase, "failed to read run", err.Error())
				return WrapExitError(ExitCommandError, "failed to read run", err)
			}

			stored, err := st.ReadCaptures(ctx, runID)
			if err != nil {
				_ = formatter.Error(ErrCodeDatabase, "failed to read captures", err.Error())
				return WrapExitError(ExitCommandError, "failed to read captures", err)
			}
			captures := fromStoreCaptures(stored)
			if rootOpts.Format == "json" {
				return formatter.Success(CaptureList{RunID: runID, Captures: captures})
			}
			return printCanonical(cmd, dataset.CanonicalCaptures(captures))
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", DefaultDatabase, "path to the run journal")
	return cmd
}

func openJournal(formatter *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, "failed to open journal", err.Error())
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
