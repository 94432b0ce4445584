package qdef

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Limits applied to every execution regardless of what a definition declares.
//
// DefaultLimit applies when a definition carries no limit at all.
// MaxInteractiveLimit caps interactive runs; MaxExportLimit caps explicit
// full-export requests. No declared limit may exceed the cap for its context.
const (
	DefaultLimit        = 10
	MaxInteractiveLimit = 500
	MaxExportLimit      = 1000
)

// TableRefKind discriminates the three things a table reference can point at.
type TableRefKind string

const (
	// RefTable references a physical table on the owning data source.
	RefTable TableRefKind = "table"
	// RefQuery references another stored query, spliced in as a CTE.
	RefQuery TableRefKind = "query"
	// RefFile references an uploaded file already materialized as a table
	// with a known, typed schema.
	RefFile TableRefKind = "file"
)

// TableRef is a declarative reference to a relation.
//
// The zero Kind is treated as RefTable so that legacy documents, which
// predate the kind discriminant, keep resolving.
type TableRef struct {
	Kind  TableRefKind `json:"type,omitempty"`
	Name  string       `json:"name"`
	Label string       `json:"label,omitempty"`
}

// EffectiveKind returns the reference kind, defaulting to RefTable.
func (r TableRef) EffectiveKind() TableRefKind {
	if r.Kind == "" {
		return RefTable
	}
	return r.Kind
}

// JoinCondition is the equality condition of a declared join.
type JoinCondition struct {
	LeftColumn  string `json:"left_column"`
	RightColumn string `json:"right_column"`
}

// JoinSpec declares how a table joins onto the table it is listed with.
type JoinSpec struct {
	Type      string        `json:"type"` // "inner" | "left" | "right" | "full"
	With      TableRef      `json:"with"`
	Condition JoinCondition `json:"condition"`
}

// Table is one entry of a legacy definition's table list. The first table is
// the FROM relation; subsequent tables contribute JOIN clauses in declaration
// order.
type Table struct {
	Table string    `json:"table"`
	Label string    `json:"label,omitempty"`
	Join  *JoinSpec `json:"join,omitempty"`
}

// GroupByAggregation is the sentinel aggregation value that marks a column as
// a grouping key rather than an aggregate.
const GroupByAggregation = "Group By"

// Column is one entry of a legacy definition's column list.
//
// Either Column or Expression is set: Column names a physical column on
// Table, Expression carries free-form calculated-column text evaluated in the
// restricted expression namespace. A column with Aggregation == "Group By"
// becomes a grouping key instead of a select aggregate.
type Column struct {
	Table       string          `json:"table,omitempty"`
	Column      string          `json:"column,omitempty"`
	Expression  json.RawMessage `json:"expression,omitempty"`
	Label       string          `json:"label"`
	Type        string          `json:"type,omitempty"`
	Aggregation string          `json:"aggregation,omitempty"`
	Format      string          `json:"format,omitempty"`
	OrderBy     string          `json:"order_by,omitempty"` // "" | "asc" | "desc"
}

// IsGroupBy reports whether the column is a grouping key.
func (c Column) IsGroupBy() bool { return c.Aggregation == GroupByAggregation }

// IsAggregate reports whether the column carries a real aggregation.
func (c Column) IsAggregate() bool {
	return c.Aggregation != "" && !c.IsGroupBy()
}

// LegacyBody is the legacy definition shape: ordered tables, ordered columns,
// one recursive filter tree, and a declared limit.
type LegacyBody struct {
	Tables  []Table         `json:"tables"`
	Columns []Column        `json:"columns"`
	Filters json.RawMessage `json:"filters,omitempty"`
	Limit   int             `json:"limit,omitempty"`
}

// Query is a stored query definition.
//
// Exactly one of Legacy/Operations is populated: documents written by the
// current editor carry Operations, older documents carry the legacy body.
// IsNative marks hand-written SQL (including LLM-drafted candidates), which
// skips the builders entirely and goes straight through the safety gate.
type Query struct {
	Name       string          `json:"name"`
	Title      string          `json:"title,omitempty"`
	DataSource string          `json:"data_source"`
	IsNative   bool            `json:"is_native_query,omitempty"`
	SQL        string          `json:"sql,omitempty"`
	Operations []Operation     `json:"operations,omitempty"`
	Legacy     *LegacyBody     `json:"json,omitempty"`
	Variables  []TemplateVar   `json:"variables,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
}

// TemplateVar binds a {{ QRY_x }} style template tag to another stored query.
type TemplateVar struct {
	Name  string `json:"variable_name"`
	Query string `json:"query"`
}

// IsPipeline reports whether the definition uses the operation-pipeline shape.
func (q *Query) IsPipeline() bool { return len(q.Operations) > 0 }

// EffectiveLimit clamps the declared limit into [1, cap], applying
// DefaultLimit when nothing was declared. Any declared value above the cap is
// reduced to the cap; zero and negative declarations fall back to the
// default.
func EffectiveLimit(declared, cap int) int {
	if cap <= 0 {
		cap = MaxInteractiveLimit
	}
	if declared <= 0 {
		declared = DefaultLimit
	}
	if declared > cap {
		return cap
	}
	return declared
}

// QueryRefs returns the names of the stored queries this definition
// references as tables, in reference order, deduplicated. Legacy main
// tables are always physical and never contribute.
func (q *Query) QueryRefs() []string {
	var out []string
	seen := map[string]bool{}
	add := func(ref TableRef) {
		if ref.EffectiveKind() != RefQuery || seen[ref.Name] {
			return
		}
		seen[ref.Name] = true
		out = append(out, ref.Name)
	}
	for _, op := range q.Operations {
		switch o := op.Op.(type) {
		case *Source:
			add(o.Table)
		case *Join:
			add(o.Table)
		}
	}
	if q.Legacy != nil {
		for _, t := range q.Legacy.Tables {
			if t.Join != nil {
				add(t.Join.With)
			}
		}
	}
	return out
}

// Parse decodes a stored query document from JSON.
func Parse(data []byte) (*Query, error) {
	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, &DefinitionError{
			Construct: "query",
			Message:   fmt.Sprintf("malformed query document: %v", err),
		}
	}
	if strings.TrimSpace(q.DataSource) == "" {
		return nil, &DefinitionError{Construct: "data_source", Message: "query has no data source"}
	}
	return &q, nil
}
