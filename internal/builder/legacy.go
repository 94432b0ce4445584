package builder

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
)

// buildLegacy compiles the tables+columns+filters shape.
//
// Assembly order: FROM the first table, JOIN each declared edge in
// declaration order, SELECT the built columns (select-all when none are
// declared), GROUP BY the collected keys, ORDER BY the collected keys,
// WHERE the filter predicate, LIMIT clamped to the system cap.
func (b *Builder) buildLegacy(body *qdef.LegacyBody) (*Compiled, error) {
	if len(body.Tables) == 0 {
		return nil, qdef.Definitionf("tables", "query has no tables")
	}

	tables := newTableSet()
	ev := &evaluator{d: b.Dialect, tables: tables, clock: b.Clock, time: b.Time}

	// Resolve declared tables, in order, deduped by label identity so the
	// same physical table can appear twice under different joins.
	rels := make([]*resolver.Relation, 0, len(body.Tables))
	relByName := map[string]*resolver.Relation{}
	for _, t := range body.Tables {
		rel, err := b.Resolver.Resolve(qdef.TableRef{Name: t.Table, Label: t.Label})
		if err != nil {
			return nil, err
		}
		if _, dup := relByName[rel.RefName()]; dup {
			continue
		}
		relByName[rel.RefName()] = rel
		rels = append(rels, rel)
		tables.add(rel.RefName())
	}

	ds := b.dataset(rels[0])
	for _, cte := range resolver.MergeCTEs(rels[1:]...) {
		ds = ds.With(cte.Name, goqu.L(cte.SQL))
	}

	// Declared joins, in declaration order. Join targets count as declared
	// tables for reference checking.
	for _, t := range body.Tables {
		if t.Join == nil {
			continue
		}
		ds2, rel, err := b.applyLegacyJoin(ds, t)
		if err != nil {
			return nil, err
		}
		ds = ds2
		relByName[rel.RefName()] = rel
		tables.add(rel.RefName())
	}

	sel, err := b.buildLegacyColumns(ev, body.Columns)
	if err != nil {
		return nil, err
	}

	if len(sel.selects) > 0 {
		ds = ds.Select(sel.selects...)
	} else {
		ds = ds.Select(goqu.Star())
	}
	if len(sel.groupBys) > 0 {
		ds = ds.GroupBy(sel.groupBys...)
	}
	if len(sel.orderBys) > 0 {
		ds = ds.Order(sel.orderBys...)
	}

	if len(body.Filters) > 0 {
		tree, err := expr.Parse(body.Filters)
		if err != nil {
			return nil, err
		}
		pred, err := ev.predicate(tree)
		if err != nil {
			return nil, err
		}
		ds = ds.Where(pred)
	}

	// Every table the columns and filters referenced must be in the FROM
	// set: a predicate citing an undeclared table would compile to SQL no
	// backend accepts.
	for _, name := range tables.ordered {
		if _, ok := relByName[name]; !ok {
			return nil, qdef.Definitionf("table",
				"table %q is referenced but never declared or joined", name)
		}
	}

	limit := qdef.EffectiveLimit(body.Limit, b.limitCap())
	ds = ds.Limit(uint(limit))

	sql, pretty, err := b.finishSQL(ds)
	if err != nil {
		return nil, err
	}
	return &Compiled{SQL: sql, Pretty: pretty, Columns: sel.columns, Limit: limit}, nil
}

func (b *Builder) applyLegacyJoin(ds *goqu.SelectDataset, t qdef.Table) (*goqu.SelectDataset, *resolver.Relation, error) {
	j := t.Join
	rel, err := b.Resolver.Resolve(j.With)
	if err != nil {
		return nil, nil, err
	}

	left := t.Label
	if left == "" {
		left = t.Table
	}
	cond := goqu.On(
		goqu.T(left).Col(j.Condition.LeftColumn).Eq(goqu.T(rel.RefName()).Col(j.Condition.RightColumn)),
	)

	for _, cte := range rel.CTEs {
		ds = ds.With(cte.Name, goqu.L(cte.SQL))
	}

	target := b.fromExpr(rel)
	switch j.Type {
	case "", "inner":
		return ds.Join(target, cond), rel, nil
	case "left":
		return ds.LeftJoin(target, cond), rel, nil
	case "right":
		return ds.RightJoin(target, cond), rel, nil
	case "full":
		return ds.FullJoin(target, cond), rel, nil
	default:
		return nil, nil, qdef.Definitionf("join", "unknown join type %q", j.Type)
	}
}

// legacySelection collects the clause contributions of the column list.
type legacySelection struct {
	selects  []any
	groupBys []any
	orderBys []exp.OrderedExpression
	columns  []ResultColumn
}

// buildLegacyColumns builds each column in declaration order:
// base reference, then date format, then aggregation (or group-by key),
// then alias. Sorting applies to the formatted value when a format is
// present, otherwise to the raw aggregated value.
//
// Grouping validity is enforced strictly: once any column aggregates, every
// selected non-aggregated column must be a Group By key.
func (b *Builder) buildLegacyColumns(ev *evaluator, cols []qdef.Column) (*legacySelection, error) {
	sel := &legacySelection{}
	hasAggregate := false

	for _, c := range cols {
		base, err := b.legacyBaseExpr(ev, c)
		if err != nil {
			return nil, err
		}

		formatted := base
		if c.Format != "" {
			// Format before aggregation so grouping happens on the
			// truncated value.
			formatted, err = b.Dialect.FormatDate(c.Format, base)
			if err != nil {
				return nil, err
			}
		}

		label := c.Label
		if label == "" {
			label = c.Column
		}

		var out exp.Expression
		switch {
		case c.IsGroupBy():
			out = formatted
			sel.groupBys = append(sel.groupBys, formatted)

		case c.IsAggregate():
			agg, ok := ev.d.Aggregation(c.Aggregation)
			if !ok {
				return nil, qdef.Definitionf("aggregation", "aggregation %q not implemented", c.Aggregation)
			}
			out = agg(formatted)
			hasAggregate = true

		default:
			out = formatted
		}

		sel.selects = append(sel.selects, exp.NewAliasExpression(out, label))
		sel.columns = append(sel.columns, ResultColumn{Label: label, Type: c.Type, Format: c.Format})

		if c.OrderBy != "" {
			sortExpr := out
			if c.Format != "" {
				sortExpr = formatted
			}
			ordered := goqu.L("?", sortExpr)
			if c.OrderBy == "desc" {
				sel.orderBys = append(sel.orderBys, ordered.Desc())
			} else {
				sel.orderBys = append(sel.orderBys, ordered.Asc())
			}
		}
	}

	if hasAggregate {
		for _, c := range cols {
			if !c.IsGroupBy() && !c.IsAggregate() {
				return nil, qdef.Definitionf("column",
					"column %q is neither aggregated nor grouped: add an aggregation or mark it Group By", c.Label)
			}
		}
	}

	return sel, nil
}

// legacyBaseExpr builds the base reference of a column entry: either a
// table-scoped column or a calculated expression.
func (b *Builder) legacyBaseExpr(ev *evaluator, c qdef.Column) (exp.Expression, error) {
	if len(c.Expression) > 0 {
		tree, err := expr.Parse(c.Expression)
		if err != nil {
			return nil, err
		}
		v, err := ev.value(tree)
		if err != nil {
			return nil, err
		}
		return asOperand(v), nil
	}
	if c.Column == "" {
		return nil, qdef.Definitionf("column", "column %q has neither a column nor an expression", c.Label)
	}
	return ev.column(expr.Column{Table: c.Table, Column: c.Column})
}
