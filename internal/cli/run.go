package cli

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/cache"
	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/exec"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
	"github.com/quarrydata/quarry/internal/source"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Queries  string
	Limit    int
	Download bool
	NoCache  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query.json>",
		Short: "Compile and execute a query definition",
		Long: `Compile a stored query definition and execute it against its data
source from the catalog, printing the result set. Native SQL definitions
go through the read-only safety gate instead of the compiler.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Queries, "queries", "", "directory of saved definitions for stored-query references")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "row limit (0 uses the definition's own limit)")
	cmd.Flags().BoolVar(&opts.Download, "download", false, "full-export run: lifts the interactive cap, bypasses the cache")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "skip the result cache")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := loadQueryFile(path)
	if err != nil {
		formatter.Error("RUN_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading query", Err: err}
	}

	cat, err := source.Load(opts.Catalog)
	if err != nil {
		formatter.Error("RUN_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading catalog", Err: err}
	}
	src, err := cat.Get(q.DataSource)
	if err != nil {
		formatter.Error("RUN_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "resolving data source", Err: err}
	}

	db, err := source.Open(src)
	if err != nil {
		formatter.Error("CONNECTION_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "connecting", Err: err}
	}
	defer db.Close()

	res, err := executeQuery(cmd.Context(), opts, q, src, db)
	if err != nil {
		formatter.Error("RUN_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "execution failed", Err: err}
	}
	formatter.VerboseLog("run %s completed in %.3fs", res.RunID, res.TimeTaken)

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	printResult(formatter, res)
	return nil
}

func executeQuery(ctx context.Context, opts *RunOptions, q *qdef.Query, src *source.Source, db *sql.DB) (*exec.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := dialect.ForBackend(src.Kind)
	if err != nil {
		return nil, err
	}

	ex := exec.New(db, d, src.Name)
	if !opts.NoCache {
		ex.Cache = cache.New[*exec.Result](0, 0)
	}

	schema := &source.DBSchema{DB: db, Kind: src.Kind}
	if q.IsNative {
		return ex.Execute(ctx, q.SQL, exec.Options{
			Native:    true,
			Limit:     opts.Limit,
			Download:  opts.Download,
			Templates: templatesFor(opts, q, src, schema),
		})
	}

	b, err := newBuilder(src, opts.Queries, schema)
	if err != nil {
		return nil, err
	}
	c, err := b.Build(q)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit == 0 {
		limit = c.Limit
	}
	return ex.Execute(ctx, c.SQL, exec.Options{
		Limit:    limit,
		Download: opts.Download,
		Columns:  c.Columns,
		Pivot:    c.Pivot,
	})
}

// templatesFor binds the definition's template variables to compiled SQL
// from the saved-query directory.
func templatesFor(opts *RunOptions, q *qdef.Query, src *source.Source, schema resolver.SchemaStore) exec.TemplateLookup {
	if len(q.Variables) == 0 || opts.Queries == "" {
		return nil
	}
	store := &DirStore{Dir: opts.Queries, Source: src, Schema: schema}
	return func(name string) (string, error) {
		for _, v := range q.Variables {
			if v.Name == name {
				sq, err := store.StoredQuery(v.Query)
				if err != nil {
					return "", err
				}
				return sq.SQL, nil
			}
		}
		return "", fmt.Errorf("no query bound to template variable %q", name)
	}
}

func printResult(formatter *OutputFormatter, res *exec.Result) {
	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for i, c := range res.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c.Label)
	}
	fmt.Fprintln(w)
	for _, row := range res.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			if v == nil {
				fmt.Fprint(w, "NULL")
			} else {
				fmt.Fprintf(w, "%v", v)
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	fmt.Fprintf(formatter.Writer, "(%d rows in %s)\n", len(res.Rows),
		time.Duration(res.TimeTaken*float64(time.Second)).Round(time.Millisecond))
}
