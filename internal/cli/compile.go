package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/builder"
	"github.com/quarrydata/quarry/internal/qdef"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Backend string // dialect override when no catalog is available
	Queries string // directory of saved definitions for query references
	Pretty  bool
}

// CompileOutput is the JSON payload of a successful compile.
type CompileOutput struct {
	SQL     string                 `json:"sql"`
	Columns []builder.ResultColumn `json:"columns"`
	Limit   int                    `json:"limit"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.json>",
		Short: "Compile a query definition to SQL",
		Long: `Compile a stored query definition to dialect-native SQL without
executing it. The target dialect comes from the definition's data source
in the catalog, or from --backend when no catalog is available.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "", "dialect to compile for when the catalog is unavailable (mysql|postgres|sqlite|warehouse)")
	cmd.Flags().StringVar(&opts.Queries, "queries", "", "directory of saved definitions for stored-query references")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "emit the formatted display SQL instead of the compact form")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := loadQueryFile(path)
	if err != nil {
		formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading query", Err: err}
	}
	if q.IsNative {
		formatter.Error("COMPILE_FAILED", "native SQL definitions are not compiled; use validate or run", nil)
		return &ExitError{Code: ExitFailure, Message: "native SQL definition"}
	}

	src, err := resolveSource(opts.RootOptions, q.DataSource, opts.Backend)
	if err != nil {
		formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "resolving data source", Err: err}
	}
	formatter.VerboseLog("Compiling %s for %s (%s)", q.Name, src.Name, src.Kind)

	b, err := newBuilder(src, opts.Queries, nil)
	if err != nil {
		formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "building compiler", Err: err}
	}
	c, err := b.Build(q)
	if err != nil {
		var derr *qdef.DefinitionError
		if errors.As(err, &derr) {
			formatter.Error("DEFINITION_ERROR", derr.Message, derr.Construct)
		} else {
			formatter.Error("COMPILE_FAILED", err.Error(), nil)
		}
		return &ExitError{Code: ExitFailure, Message: "compilation failed", Err: err}
	}

	if opts.Format == "json" {
		return formatter.Success(CompileOutput{SQL: c.SQL, Columns: c.Columns, Limit: c.Limit})
	}
	if opts.Pretty {
		return formatter.Success(c.Pretty)
	}
	return formatter.Success(c.SQL)
}
