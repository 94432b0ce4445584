// Package builder compiles declarative query definitions into executable,
// dialect-native SQL.
//
// Two builders share one contract. The legacy builder walks the
// tables+columns+filters shape and assembles a single SELECT; the pipeline
// builder consumes an ordered operation list, folding each step onto a
// running relation and wrapping it into a subquery whenever SQL clause
// ordering would otherwise reorder the user's steps. Both are generic over
// an injected dialect capability object; neither contains backend-specific
// SQL of its own.
package builder

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
)

// ResultColumn is the declared metadata of one output column.
type ResultColumn struct {
	Label  string `json:"label"`
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

// PivotSpec describes the in-memory unstack half of a pivot_wider step. The
// SQL half (group + aggregate) is part of the compiled statement; the
// executor applies the unstack to the result set.
type PivotSpec struct {
	Rows    []string
	Columns []string
	Values  []string
}

// Compiled is the product of one build: a dialect-native statement plus
// display text and output metadata. It is owned by a single compile-execute
// cycle and never shared across queries.
type Compiled struct {
	// SQL is valid, directly re-executable SQL in the target dialect.
	SQL string

	// Pretty is the upper-keyword, re-indented display form of SQL.
	Pretty string

	// Columns is the declared output schema in declaration order. Types
	// left empty are inferred from sampled result values after execution.
	Columns []ResultColumn

	// Limit is the clamped declared limit. The executor's hard cap is
	// applied on top regardless.
	Limit int

	// Pivot, when set, is applied to the result set after execution.
	Pivot *PivotSpec
}

// Builder compiles query definitions for one data source.
type Builder struct {
	Dialect  *dialect.Dialect
	Resolver *resolver.Resolver

	// Clock and Time feed relative-timespan resolution. A nil Clock means
	// wall-clock time.
	Clock dialect.Clock
	Time  dialect.TimeConfig

	// LimitCap clamps declared limits; zero means the interactive cap.
	LimitCap int
}

// New creates a Builder with strict SQL-92 grouping validation.
func New(d *dialect.Dialect, r *resolver.Resolver) *Builder {
	return &Builder{Dialect: d, Resolver: r}
}

// Build compiles a query definition. Pipeline definitions take priority;
// native SQL definitions are not built here at all (they go straight to the
// execution layer's safety gate).
func (b *Builder) Build(q *qdef.Query) (*Compiled, error) {
	if q.IsNative {
		return nil, qdef.Definitionf("query", "native SQL queries are executed directly, not compiled")
	}
	if q.IsPipeline() {
		return b.buildPipeline(q.Operations)
	}
	if q.Legacy != nil {
		return b.buildLegacy(q.Legacy)
	}
	return nil, qdef.Definitionf("query", "query %q has neither operations nor a legacy body", q.Name)
}

// dataset starts a dialect-bound dataset from a resolved relation,
// prefixing any CTEs the relation carries.
func (b *Builder) dataset(rel *resolver.Relation) *goqu.SelectDataset {
	ds := goqu.Dialect(b.Dialect.GoquName).From(b.fromExpr(rel))
	for _, cte := range rel.CTEs {
		ds = ds.With(cte.Name, goqu.L(cte.SQL))
	}
	return ds
}

func (b *Builder) fromExpr(rel *resolver.Relation) exp.Expression {
	t := goqu.T(rel.Table)
	if rel.Alias != "" && rel.Alias != rel.Table {
		return t.As(rel.Alias)
	}
	return t
}

func (b *Builder) limitCap() int {
	if b.LimitCap > 0 {
		return b.LimitCap
	}
	return qdef.MaxInteractiveLimit
}

// finishSQL renders the dataset and derives the display form.
func (b *Builder) finishSQL(ds *goqu.SelectDataset) (string, string, error) {
	sql, _, err := ds.ToSQL()
	if err != nil {
		return "", "", qdef.Definitionf("query", "cannot render SQL: %v", err)
	}
	return sql, Format(sql), nil
}
