package harness

import (
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/internal/builder"
	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
	"github.com/quarrydata/quarry/internal/testutil"
)

// Result captures one scenario compilation.
type Result struct {
	SQL     string                 `json:"sql"`
	Pretty  string                 `json:"pretty"`
	Columns []builder.ResultColumn `json:"columns"`
	Limit   int                    `json:"limit"`
}

// Run compiles the scenario's query definition against its declared
// backend, schema, and stored queries.
func Run(s *Scenario) (*Result, error) {
	data, err := s.QueryJSON()
	if err != nil {
		return nil, err
	}
	q, err := qdef.Parse(data)
	if err != nil {
		return nil, err
	}

	d, err := dialect.ForBackend(s.Backend)
	if err != nil {
		return nil, err
	}

	store := resolver.NewStaticStore()
	for table, cols := range s.Schema {
		store.Tables[table] = parseSchemaColumns(cols)
	}
	for name, def := range s.Stored {
		store.Queries[name] = &resolver.StoredQuery{
			Name:       name,
			DataSource: q.DataSource,
			SQL:        def.SQL,
			DependsOn:  def.DependsOn,
			Columns:    parseSchemaColumns(def.Columns),
		}
	}

	now, err := s.Clock()
	if err != nil {
		return nil, err
	}

	b := builder.New(d, &resolver.Resolver{
		DataSource: q.DataSource,
		Queries:    store,
		Files:      store,
		Schema:     store,
	})
	b.Clock = testutil.NewFixedClock(now)

	c, err := b.Build(q)
	if err != nil {
		return nil, err
	}
	return &Result{SQL: c.SQL, Pretty: c.Pretty, Columns: c.Columns, Limit: c.Limit}, nil
}

// parseSchemaColumns decodes "name:type" or bare "name" entries.
func parseSchemaColumns(cols []string) []resolver.ColumnInfo {
	out := make([]resolver.ColumnInfo, 0, len(cols))
	for _, c := range cols {
		name, typ, found := strings.Cut(c, ":")
		if !found {
			out = append(out, resolver.ColumnInfo{Name: c})
			continue
		}
		out = append(out, resolver.ColumnInfo{Name: name, Type: typ})
	}
	return out
}

// CheckError validates a scenario that expects compilation to fail.
func CheckError(s *Scenario, err error) error {
	if err == nil {
		return fmt.Errorf("scenario %q: expected error containing %q, compilation succeeded", s.Name, s.ExpectError)
	}
	if !strings.Contains(err.Error(), s.ExpectError) {
		return fmt.Errorf("scenario %q: error %q does not contain %q", s.Name, err.Error(), s.ExpectError)
	}
	return nil
}
