package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/printmerge/internal/job"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                  `json:"valid"`
	Job    string                `json:"job,omitempty"`
	Rows   int                   `json:"rows,omitempty"`
	Errors []job.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <job.yaml>",
		Short: "Validate a job file without running it",
		Long: `Decode a job file strictly, check it against the job schema and load
its rows. Nothing is printed, exported or recorded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, jobPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	formatter.VerboseLog("Validating %s", jobPath)

	j, err := job.Load(jobPath)
	if err != nil {
		var verrs *job.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs.Errors)
		}
		_ = formatter.Error(ErrCodeInvalidRequest, "failed to load job", err.Error())
		return WrapExitError(ExitCommandError, "failed to load job", err)
	}

	plan, err := j.Build()
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidRequest, "failed to load rows", err.Error())
		return WrapExitError(ExitCommandError, "failed to load rows", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Job: plan.Name, Rows: plan.Source.RowCount()})
	}
	fmt.Fprintf(formatter.Writer, "%s %s is valid (%d rows)\n", successColor.Sprint("✓"), plan.Name, plan.Source.RowCount())
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []job.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    ErrCodeInvalidJob,
				Message: errs[0].Error(),
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, errorColor.Sprint("✗ Validation failed"))
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
