package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/printmerge/internal/dataset"
)

// ResolveResult shows how a selection maps onto a source.
type ResolveResult struct {
	Selection string `json:"selection"`
	Kind      string `json:"kind"`
	Rows      int    `json:"rows"`
	Indices   []int  `json:"indices"`
}

func (r ResolveResult) String() string {
	return fmt.Sprintf("%s (%s) over %d rows: %v", r.Selection, r.Kind, r.Rows, r.Indices)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "resolve <selection>",
		Short: "Show the 0-based row indices a selection resolves to",
		Long: `Resolve selection text (all | 3-7 | 1,4,9) against a source of --rows
rows and print the 0-based indices a merge would process, in order.

Ranges are clamped to the source; individual rows are used verbatim.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			sel, err := dataset.ParseSelection(args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeInvalidRequest, "invalid selection", err.Error())
				return WrapExitError(ExitCommandError, "invalid selection", err)
			}
			return formatter.Success(ResolveResult{
				Selection: sel.String(),
				Kind:      sel.Kind.String(),
				Rows:      rows,
				Indices:   sel.Resolve(rows),
			})
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "number of rows in the source")
	return cmd
}
