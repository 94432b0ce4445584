package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quarrydata/quarry/internal/builder"
	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
	"github.com/quarrydata/quarry/internal/source"
)

// DirStore resolves stored-query references from a directory of saved
// definition files, one <name>.json per query. Referenced bodies are
// compiled shallowly: their own stored-query references stay bare table
// names, and the outer statement's resolver walk splices them in as CTEs.
type DirStore struct {
	Dir    string
	Source *source.Source
	Schema resolver.SchemaStore
}

// StoredQuery implements resolver.QueryStore.
func (s *DirStore) StoredQuery(name string) (*resolver.StoredQuery, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("stored query %q: %w", name, err)
	}
	q, err := qdef.Parse(data)
	if err != nil {
		return nil, err
	}

	sq := &resolver.StoredQuery{
		Name:       name,
		DataSource: q.DataSource,
		DependsOn:  q.QueryRefs(),
	}
	if q.IsNative {
		sq.SQL = q.SQL
		return sq, nil
	}

	d, err := dialect.ForBackend(s.Source.Kind)
	if err != nil {
		return nil, err
	}
	r := &resolver.Resolver{
		DataSource: q.DataSource,
		Queries:    s,
		Schema:     s.Schema,
		Shallow:    true,
	}
	c, err := builder.New(d, r).Build(q)
	if err != nil {
		return nil, fmt.Errorf("stored query %q: %w", name, err)
	}
	sq.SQL = c.SQL
	for _, col := range c.Columns {
		sq.Columns = append(sq.Columns, resolver.ColumnInfo{Name: col.Label, Type: col.Type})
	}
	return sq, nil
}

// loadQueryFile reads and parses one definition document.
func loadQueryFile(path string) (*qdef.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "reading query file", Err: err}
	}
	return qdef.Parse(data)
}

// newBuilder wires a builder for one source, resolving stored-query
// references from queriesDir when it is non-empty.
func newBuilder(src *source.Source, queriesDir string, schema resolver.SchemaStore) (*builder.Builder, error) {
	d, err := dialect.ForBackend(src.Kind)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		schema = resolver.NewStaticStore()
	}
	r := &resolver.Resolver{DataSource: src.Name, Schema: schema}
	if queriesDir != "" {
		r.Queries = &DirStore{Dir: queriesDir, Source: src, Schema: schema}
	}
	return builder.New(d, r), nil
}

// resolveSource loads the catalog and looks up the query's data source.
// With no catalog on disk, backend names a kind directly so offline
// compilation still works.
func resolveSource(opts *RootOptions, dataSource, backend string) (*source.Source, error) {
	cat, err := source.Load(opts.Catalog)
	if err != nil {
		if backend != "" {
			return &source.Source{Name: dataSource, Kind: backend}, nil
		}
		return nil, err
	}
	return cat.Get(dataSource)
}
