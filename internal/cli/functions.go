package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/printmerge/internal/dataset"
	"github.com/roach88/printmerge/internal/printfn"
)

// FunctionList is the registered print functions in chain order.
type FunctionList struct {
	Functions []printfn.Descriptor `json:"functions"`
}

func (l FunctionList) String() string {
	var b strings.Builder
	for i, d := range l.Functions {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d  %s", d.Order, d.Name)
	}
	return b.String()
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the built-in print functions in chain order",
		Long: `List the print functions a job may name. A chain always runs them by
ascending order key, whatever order the job lists them in.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			reg, err := builtinRegistry()
			if err != nil {
				return WrapExitError(ExitFailure, "register print functions", err)
			}
			return formatter.Success(FunctionList{Functions: reg.Descriptors()})
		},
	}
}

// builtinRegistry holds every built-in function over an empty source; it
// is only used to describe them.
func builtinRegistry() (*printfn.Registry, error) {
	reg := printfn.NewRegistry()
	if err := printfn.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if err := dataset.Register(reg, dataset.NewMemorySource([]string{}, nil)); err != nil {
		return nil, err
	}
	return reg, nil
}
