// Package resolver turns declarative table references into queryable
// relations.
//
// A table reference names a physical table, an uploaded-file table, or
// another stored query. Stored-query references are spliced into the final
// statement as named common table expressions: chains of stored queries
// (A sources B sources C) flatten into one multi-CTE statement rather than
// nested subqueries, because several dialects limit nesting depth. Each
// distinct stored-query name appears in the CTE list at most once, in
// dependency order, and self- or mutually-referential chains are rejected
// with an explicit cyclic-reference error instead of recursing forever.
//
// All relations participating in one compiled statement must belong to the
// same data source: SQL text cannot span connections, so a cross-source
// reference is an error, never a silent pick.
package resolver

import (
	"strings"

	"github.com/quarrydata/quarry/internal/qdef"
)

// StoredQuery is another stored query referenced as a table. SQL is the
// query's own compiled body (no WITH prefix of its own); DependsOn names the
// stored queries it sources from, in reference order.
type StoredQuery struct {
	Name       string
	DataSource string
	SQL        string
	DependsOn  []string

	// Columns is the query's output schema, known at compile time from its
	// select list. Steps that resolve columns against a query-kind source
	// need it.
	Columns []ColumnInfo
}

// QueryStore looks up stored queries by name.
type QueryStore interface {
	StoredQuery(name string) (*StoredQuery, error)
}

// FileTable is an uploaded file materialized as a table with a known,
// typed schema.
type FileTable struct {
	Name    string
	Table   string
	Columns []ColumnInfo
}

// FileStore looks up uploaded-file tables by name.
type FileStore interface {
	FileTable(name string) (*FileTable, error)
}

// ColumnInfo is one column of a resolved relation's schema.
type ColumnInfo struct {
	Name string
	Type string // semantic type; empty when unknown
}

// SchemaStore supplies column lists for physical tables. The pipeline
// builder needs explicit column sets to compile rename/remove and to drop a
// join's duplicate-named right-side columns.
type SchemaStore interface {
	Columns(table string) ([]ColumnInfo, error)
}

// CTE is one named common table expression of a flattened statement.
type CTE struct {
	Name string
	SQL  string
}

// Relation is the resolution of one table reference.
type Relation struct {
	// Table is the FROM-able name: the physical table, the file's backing
	// table, or the stored query's CTE name.
	Table string

	// Alias is the declared label, empty when none.
	Alias string

	// CTEs lists the common table expressions the statement must be
	// prefixed with, dependency-first, each name at most once.
	CTEs []CTE

	// Columns is the relation's schema when known.
	Columns []ColumnInfo
}

// RefName returns the name the relation is addressed by in generated SQL.
func (r *Relation) RefName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Table
}

// Resolver resolves table references against one data source.
type Resolver struct {
	DataSource string
	Queries    QueryStore
	Files      FileStore
	Schema     SchemaStore

	// Shallow stops stored-query references from being walked: they
	// resolve to a bare relation named after the query, with no CTEs.
	// Used when compiling a stored query's own body, whose references
	// are spliced in later by the outer statement's walk.
	Shallow bool
}

// Resolve materializes one table reference.
func (r *Resolver) Resolve(ref qdef.TableRef) (*Relation, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, qdef.Definitionf("table", "table reference has no name")
	}

	switch ref.EffectiveKind() {
	case qdef.RefTable:
		rel := &Relation{Table: name, Alias: ref.Label}
		if r.Schema != nil {
			cols, err := r.Schema.Columns(name)
			if err != nil {
				return nil, qdef.Definitionf("table", "table %q cannot be resolved: %v", name, err)
			}
			rel.Columns = cols
		}
		return rel, nil

	case qdef.RefFile:
		if r.Files == nil {
			return nil, qdef.Definitionf("table", "file reference %q: no file store configured", name)
		}
		ft, err := r.Files.FileTable(name)
		if err != nil {
			return nil, qdef.Definitionf("table", "uploaded file %q cannot be resolved: %v", name, err)
		}
		return &Relation{Table: ft.Table, Alias: ref.Label, Columns: ft.Columns}, nil

	case qdef.RefQuery:
		if r.Shallow {
			return &Relation{Table: name, Alias: ref.Label}, nil
		}
		return r.resolveStoredQuery(name, ref.Label)

	default:
		return nil, qdef.Definitionf("table", "unknown table reference kind %q", ref.Kind)
	}
}

// resolveStoredQuery flattens the reference's whole dependency chain into a
// dependency-ordered CTE list.
func (r *Resolver) resolveStoredQuery(name, label string) (*Relation, error) {
	if r.Queries == nil {
		return nil, qdef.Definitionf("table", "query reference %q: no query store configured", name)
	}

	w := &walk{
		resolver: r,
		fetched:  map[string]*StoredQuery{},
		done:     map[string]bool{},
		onStack:  map[string]bool{},
	}
	if err := w.visit(name); err != nil {
		return nil, err
	}
	return &Relation{
		Table:   name,
		Alias:   label,
		CTEs:    w.ctes,
		Columns: w.fetched[name].Columns,
	}, nil
}

// walk is the depth-first flattening state. The on-stack set converts
// infinite recursion into an explicit cyclic-reference error; the done set
// dedupes diamonds so each query contributes one CTE.
type walk struct {
	resolver *Resolver
	fetched  map[string]*StoredQuery
	done     map[string]bool
	onStack  map[string]bool
	stack    []string
	ctes     []CTE
}

func (w *walk) visit(name string) error {
	if w.onStack[name] {
		chain := append(append([]string{}, w.stack...), name)
		return qdef.Definitionf("query", "cyclic query reference: %s", strings.Join(chain, " -> "))
	}
	if w.done[name] {
		return nil
	}

	sq, err := w.resolver.Queries.StoredQuery(name)
	if err != nil {
		return qdef.Definitionf("query", "stored query %q cannot be resolved: %v", name, err)
	}
	w.fetched[name] = sq
	if sq.DataSource != w.resolver.DataSource {
		return qdef.Definitionf("query",
			"stored query %q belongs to data source %q, statement is compiled for %q: one statement cannot span data sources",
			name, sq.DataSource, w.resolver.DataSource)
	}

	w.onStack[name] = true
	w.stack = append(w.stack, name)
	for _, dep := range sq.DependsOn {
		if err := w.visit(dep); err != nil {
			return err
		}
	}
	w.stack = w.stack[:len(w.stack)-1]
	delete(w.onStack, name)

	w.done[name] = true
	w.ctes = append(w.ctes, CTE{Name: name, SQL: sq.SQL})
	return nil
}

// MergeCTEs combines the CTE lists of several relations, preserving first
// appearance order and dropping duplicate names.
func MergeCTEs(rels ...*Relation) []CTE {
	var out []CTE
	seen := map[string]bool{}
	for _, rel := range rels {
		if rel == nil {
			continue
		}
		for _, c := range rel.CTEs {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}

// ColumnNames projects a schema to its ordered names.
func ColumnNames(cols []ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
