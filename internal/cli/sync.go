package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/source"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Warehouse string
}

// SyncOutput reports a batch sync: which tables copied and which failed.
type SyncOutput struct {
	Source string            `json:"source"`
	Synced []string          `json:"synced"`
	Failed map[string]string `json:"failed,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <source> <table>...",
		Short: "Re-import remote tables into the local warehouse",
		Long: `Copy the named tables from a remote data source into the embedded
warehouse store. Failures are isolated per table: one broken table does
not stop the rest of the batch.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Warehouse, "warehouse", ".quarry/warehouse", "warehouse store directory")

	return cmd
}

func runSync(opts *SyncOptions, sourceName string, tables []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, err := source.Load(opts.Catalog)
	if err != nil {
		formatter.Error("CATALOG_ERROR", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading catalog", Err: err}
	}
	src, err := cat.Get(sourceName)
	if err != nil {
		formatter.Error("CATALOG_ERROR", err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "resolving data source", Err: err}
	}

	wh := warehouse.New(opts.Warehouse)
	defer wh.Close()

	local, err := wh.Open(src.Name, src.Fingerprint())
	if err != nil {
		formatter.Error("SYNC_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "opening warehouse store", Err: err}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	failed := map[string]error{}
	err = source.WithConnection(ctx, src, func(ctx context.Context, remote *sql.DB) error {
		failed = wh.SyncMany(ctx, local, remote, tables)
		return nil
	})
	if err != nil {
		formatter.Error("CONNECTION_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "connecting", Err: err}
	}

	out := SyncOutput{Source: src.Name}
	for _, t := range tables {
		if ferr, ok := failed[t]; ok {
			if out.Failed == nil {
				out.Failed = map[string]string{}
			}
			out.Failed[t] = ferr.Error()
		} else {
			out.Synced = append(out.Synced, t)
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		for _, t := range out.Synced {
			fmt.Fprintf(cmd.OutOrStdout(), "synced %s\n", t)
		}
		for t, msg := range out.Failed {
			fmt.Fprintf(cmd.OutOrStdout(), "failed %s: %s\n", t, msg)
		}
	}
	if len(out.Failed) > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d tables failed", len(out.Failed), len(tables))}
	}
	return nil
}
