package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/source"
)

// SourceInfo is one catalog entry in the sources listing. Credentials are
// deliberately absent.
type SourceInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Host     string `json:"host,omitempty"`
	Database string `json:"database,omitempty"`
	File     string `json:"file,omitempty"`
}

// SourcesOutput is the JSON payload of the sources command.
type SourcesOutput struct {
	Sources []SourceInfo       `json:"sources"`
	Links   []source.TableLink `json:"links,omitempty"`
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sources",
		Short:         "List configured data sources and table links",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(rootOpts, cmd)
		},
	}
	return cmd
}

func runSources(opts *RootOptions, cmd *cobra.Command) error {
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

	out := SourcesOutput{Links: cat.Links.All()}
	for _, s := range cat.Sources {
		out.Sources = append(out.Sources, SourceInfo{
			Name:     s.Name,
			Kind:     s.Kind,
			Host:     s.Host,
			Database: s.Database,
			File:     s.File,
		})
	}

	if opts.Format == "json" {
		return formatter.Success(out)
	}

	var b strings.Builder
	for _, s := range out.Sources {
		loc := s.File
		if loc == "" {
			loc = s.Host + "/" + s.Database
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\n", s.Name, s.Kind, loc)
	}
	if len(out.Links) > 0 {
		fmt.Fprintf(&b, "\nlinks:\n")
		for _, l := range out.Links {
			fmt.Fprintf(&b, "%s.%s -> %s.%s", l.LeftTable, l.LeftColumn, l.RightTable, l.RightColumn)
			if l.Cardinality != "" {
				fmt.Fprintf(&b, " (%s)", l.Cardinality)
			}
			fmt.Fprintln(&b)
		}
	}
	return formatter.Success(strings.TrimRight(b.String(), "\n"))
}
