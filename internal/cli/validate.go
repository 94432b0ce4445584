package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/exec"
	"github.com/quarrydata/quarry/internal/qdef"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Backend string
	Queries string
}

// ValidationResult is the JSON payload of a validate run.
type ValidationResult struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query.json>",
		Short: "Validate a query definition without executing it",
		Long: `Validate a stored query definition: pipeline and legacy definitions
must compile, native SQL must pass the read-only safety gate. Nothing is
executed against a backend.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "", "dialect to validate against when the catalog is unavailable")
	cmd.Flags().StringVar(&opts.Queries, "queries", "", "directory of saved definitions for stored-query references")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := loadQueryFile(path)
	if err != nil {
		formatter.Error("INVALID_DEFINITION", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading query", Err: err}
	}

	if verr := validateQuery(opts, q); verr != nil {
		var derr *qdef.DefinitionError
		switch {
		case errors.As(verr, &derr):
			formatter.Error("DEFINITION_ERROR", derr.Message, derr.Construct)
		case exec.IsSafetyError(verr):
			formatter.Error("SAFETY_VIOLATION", verr.Error(), nil)
		default:
			formatter.Error("INVALID_DEFINITION", verr.Error(), nil)
		}
		return &ExitError{Code: ExitFailure, Message: "validation failed", Err: verr}
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Name: q.Name, Valid: true})
	}
	return formatter.Success(fmt.Sprintf("%s: valid", q.Name))
}

func validateQuery(opts *ValidateOptions, q *qdef.Query) error {
	if q.IsNative {
		return exec.Gate(q.SQL)
	}
	src, err := resolveSource(opts.RootOptions, q.DataSource, opts.Backend)
	if err != nil {
		return err
	}
	b, err := newBuilder(src, opts.Queries, nil)
	if err != nil {
		return err
	}
	_, err = b.Build(q)
	return err
}
