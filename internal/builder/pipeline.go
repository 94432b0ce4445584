package builder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/qdef"
	"github.com/quarrydata/quarry/internal/resolver"
)

// pipeCol is one column of the pipeline's current relation.
type pipeCol struct {
	name   string
	ex     exp.Expression
	typ    string
	format string
}

// pipeline folds the ordered operation list onto a running relation.
//
// Each handler is pure with respect to the accumulator: it takes the
// current relation and produces the next. When an operation cannot be
// merged into the current SELECT's clause set without changing the user's
// step order (a filter after a summarize, anything after a limit), the
// current relation is wrapped into a subquery and a fresh clause set starts.
// CTEs collected from resolved references attach once, at the outermost
// statement, so chains of stored queries never nest WITH inside WITH.
type pipeline struct {
	b  *Builder
	ev *evaluator

	ds    *goqu.SelectDataset
	cols  []pipeCol
	rels  []*resolver.Relation
	depth int

	grouped bool
	limited bool
	limit   int
	pivot   *PivotSpec
}

// buildPipeline compiles the ordered operation list.
//
// Unknown operation types are a deliberate no-op passthrough, not an error:
// saved pipelines drift across code versions, and skipping an unknown step
// beats refusing to run the document. Expression-level strictness (unknown
// functions, unknown expression types) is unaffected.
func (b *Builder) buildPipeline(ops []qdef.Operation) (*Compiled, error) {
	p := &pipeline{b: b, limit: qdef.DefaultLimit}
	p.ev = &evaluator{d: b.Dialect, clock: b.Clock, time: b.Time, columns: p.colExpr}

	for i, op := range ops {
		if op.Op == nil {
			// Unknown operation type: skip.
			continue
		}
		if p.ds == nil {
			if _, ok := op.Op.(*qdef.Source); !ok {
				return nil, qdef.Definitionf("operation", "pipeline must start with a source step, got %q", op.Type)
			}
		}
		if err := p.apply(op.Op); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i+1, op.Type, err)
		}
	}
	if p.ds == nil {
		return nil, qdef.Definitionf("operation", "pipeline has no source step")
	}

	// Attach the resolved references' CTEs once each: a stored query
	// reachable through several references still contributes one CTE.
	ds := p.ds.Select(p.selectList()...)
	for _, cte := range resolver.MergeCTEs(p.rels...) {
		ds = ds.With(cte.Name, goqu.L(cte.SQL))
	}

	limit := qdef.EffectiveLimit(p.limit, b.limitCap())
	ds = ds.Limit(uint(limit))

	sql, pretty, err := b.finishSQL(ds)
	if err != nil {
		return nil, err
	}
	return &Compiled{
		SQL:     sql,
		Pretty:  pretty,
		Columns: p.resultColumns(),
		Limit:   limit,
		Pivot:   p.pivot,
	}, nil
}

func (p *pipeline) apply(op qdef.Op) error {
	switch o := op.(type) {
	case *qdef.Source:
		return p.applySource(o)
	case *qdef.Join:
		return p.applyJoin(o)
	case *qdef.Filter:
		return p.applyFilter(o)
	case *qdef.FilterGroup:
		return p.applyFilterGroup(o)
	case *qdef.Select:
		return p.applySelect(o)
	case *qdef.Rename:
		return p.applyRename(o)
	case *qdef.Remove:
		return p.applyRemove(o)
	case *qdef.Mutate:
		return p.applyMutate(o)
	case *qdef.Cast:
		return p.applyCast(o)
	case *qdef.Summarize:
		return p.applySummarize(o)
	case *qdef.OrderBy:
		return p.applyOrderBy(o)
	case *qdef.Limit:
		return p.applyLimit(o)
	case *qdef.PivotWider:
		return p.applyPivot(o)
	default:
		// Sealed interface: unreachable for known builds.
		return nil
	}
}

// colExpr resolves a bare column name against the current relation.
func (p *pipeline) colExpr(name string) (exp.Expression, bool) {
	for _, c := range p.cols {
		if c.name == name {
			return c.ex, true
		}
	}
	return nil, false
}

func (p *pipeline) colIndex(name string) int {
	for i, c := range p.cols {
		if c.name == name {
			return i
		}
	}
	return -1
}

// selectList aliases every current column for the final (or wrapped)
// projection.
func (p *pipeline) selectList() []any {
	out := make([]any, len(p.cols))
	for i, c := range p.cols {
		out[i] = exp.NewAliasExpression(c.ex, c.name)
	}
	return out
}

func (p *pipeline) resultColumns() []ResultColumn {
	out := make([]ResultColumn, len(p.cols))
	for i, c := range p.cols {
		out[i] = ResultColumn{Label: c.name, Type: c.typ, Format: c.format}
	}
	return out
}

// wrap materializes the current relation as a subquery and starts a fresh
// clause set over it. Column expressions become plain references into the
// subquery's alias.
func (p *pipeline) wrap() {
	inner := p.ds.Select(p.selectList()...)
	if p.limited {
		inner = inner.Limit(uint(p.limit))
	}
	p.depth++
	alias := fmt.Sprintf("t%d", p.depth)
	p.ds = goqu.Dialect(p.b.Dialect.GoquName).From(inner.As(alias))
	for i := range p.cols {
		p.cols[i].ex = goqu.T(alias).Col(p.cols[i].name)
	}
	p.grouped = false
	p.limited = false
}

func (p *pipeline) wrapIf(cond bool) {
	if cond {
		p.wrap()
	}
}

func (p *pipeline) applySource(o *qdef.Source) error {
	rel, err := p.b.Resolver.Resolve(o.Table)
	if err != nil {
		return err
	}
	p.ds = goqu.Dialect(p.b.Dialect.GoquName).From(p.b.fromExpr(rel))
	p.rels = append(p.rels, rel)
	p.cols = p.cols[:0]
	for _, c := range rel.Columns {
		p.cols = append(p.cols, pipeCol{
			name: c.Name,
			ex:   goqu.T(rel.RefName()).Col(c.Name),
			typ:  c.Type,
		})
	}
	return nil
}

func (p *pipeline) applyJoin(o *qdef.Join) error {
	p.wrapIf(p.grouped || p.limited)

	rel, err := p.b.Resolver.Resolve(o.Table)
	if err != nil {
		return err
	}
	p.rels = append(p.rels, rel)

	left, ok := p.colExpr(o.LeftColumn)
	if !ok {
		return qdef.Definitionf("join", "left column %q cannot be resolved from the preceding steps", o.LeftColumn)
	}
	cond := goqu.On(goqu.L("? = ?", left, goqu.T(rel.RefName()).Col(o.RightColumn)))

	target := p.b.fromExpr(rel)
	switch o.JoinType {
	case "", "inner":
		p.ds = p.ds.Join(target, cond)
	case "left":
		p.ds = p.ds.LeftJoin(target, cond)
	case "right":
		p.ds = p.ds.RightJoin(target, cond)
	case "full":
		p.ds = p.ds.FullJoin(target, cond)
	default:
		return qdef.Definitionf("join", "unknown join type %q", o.JoinType)
	}

	// The right side's duplicate-named columns are dropped.
	for _, c := range rel.Columns {
		if p.colIndex(c.Name) >= 0 {
			continue
		}
		p.cols = append(p.cols, pipeCol{
			name: c.Name,
			ex:   goqu.T(rel.RefName()).Col(c.Name),
			typ:  c.Type,
		})
	}
	return nil
}

func (p *pipeline) applyFilter(o *qdef.Filter) error {
	p.wrapIf(p.grouped || p.limited)

	var pred exp.Expression
	var err error
	if len(o.Expression) > 0 {
		var tree expr.Expr
		tree, err = expr.Parse(o.Expression)
		if err != nil {
			return err
		}
		pred, err = p.ev.predicate(tree)
	} else {
		pred, err = p.conditionPred(o.FilterCondition)
	}
	if err != nil {
		return err
	}
	p.ds = p.ds.Where(pred)
	return nil
}

func (p *pipeline) applyFilterGroup(o *qdef.FilterGroup) error {
	p.wrapIf(p.grouped || p.limited)

	if len(o.Filters) == 0 {
		p.ds = p.ds.Where(trueExpr())
		return nil
	}
	preds := make([]exp.Expression, 0, len(o.Filters))
	for _, c := range o.Filters {
		pred, err := p.conditionPred(c)
		if err != nil {
			return err
		}
		preds = append(preds, pred)
	}
	if o.LogicalOperator == "||" {
		p.ds = p.ds.Where(goqu.Or(preds...))
	} else {
		p.ds = p.ds.Where(goqu.And(preds...))
	}
	return nil
}

// conditionPred compiles one {column, operator, value} condition from the
// simple sub-language.
func (p *pipeline) conditionPred(c qdef.FilterCondition) (exp.Expression, error) {
	left, ok := p.colExpr(c.Column)
	if !ok {
		return nil, qdef.Definitionf("filter", "column %q cannot be resolved from the preceding steps", c.Column)
	}
	return conditionOn(p.ev, left, c.Operator, c.Value)
}

func (p *pipeline) applySelect(o *qdef.Select) error {
	next := make([]pipeCol, 0, len(o.Columns))
	for _, name := range o.Columns {
		i := p.colIndex(name)
		if i < 0 {
			return qdef.Definitionf("select", "column %q cannot be resolved from the preceding steps", name)
		}
		next = append(next, p.cols[i])
	}
	p.cols = next
	return nil
}

func (p *pipeline) applyRename(o *qdef.Rename) error {
	i := p.colIndex(o.Column)
	if i < 0 {
		return qdef.Definitionf("rename", "column %q cannot be resolved from the preceding steps", o.Column)
	}
	if o.NewName == "" {
		return qdef.Definitionf("rename", "new name for column %q is empty", o.Column)
	}
	p.cols[i].name = o.NewName
	return nil
}

func (p *pipeline) applyRemove(o *qdef.Remove) error {
	drop := map[string]bool{}
	for _, name := range o.Columns {
		if p.colIndex(name) < 0 {
			return qdef.Definitionf("remove", "column %q cannot be resolved from the preceding steps", name)
		}
		drop[name] = true
	}
	next := p.cols[:0]
	for _, c := range p.cols {
		if !drop[c.name] {
			next = append(next, c)
		}
	}
	p.cols = next
	return nil
}

func (p *pipeline) applyMutate(o *qdef.Mutate) error {
	if o.Label == "" {
		return qdef.Definitionf("mutate", "mutate step has no label")
	}
	tree, err := expr.ParseText(o.Expression)
	if err != nil {
		return err
	}
	v, err := p.ev.value(tree)
	if err != nil {
		return err
	}
	ex := asOperand(v)
	if t := p.b.Dialect.CastType(o.DataType); t != "" {
		ex = goqu.L("CAST(? AS "+t+")", ex)
	}
	if i := p.colIndex(o.Label); i >= 0 {
		p.cols[i] = pipeCol{name: o.Label, ex: ex, typ: o.DataType}
		return nil
	}
	p.cols = append(p.cols, pipeCol{name: o.Label, ex: ex, typ: o.DataType})
	return nil
}

func (p *pipeline) applyCast(o *qdef.Cast) error {
	i := p.colIndex(o.Column)
	if i < 0 {
		return qdef.Definitionf("cast", "column %q cannot be resolved from the preceding steps", o.Column)
	}
	if t := p.b.Dialect.CastType(o.DataType); t != "" {
		p.cols[i].ex = goqu.L("CAST(? AS "+t+")", p.cols[i].ex)
	}
	p.cols[i].typ = o.DataType
	return nil
}

func (p *pipeline) applySummarize(o *qdef.Summarize) error {
	p.wrapIf(p.grouped || p.limited)

	if len(o.Measures) == 0 {
		return qdef.Definitionf("summarize", "summarize step has no measures")
	}

	next := make([]pipeCol, 0, len(o.Dimensions)+len(o.Measures))
	groupBys := make([]any, 0, len(o.Dimensions))

	for _, d := range o.Dimensions {
		ex, ok := p.colExpr(d.Column)
		if !ok {
			return qdef.Definitionf("summarize", "dimension %q cannot be resolved from the preceding steps", d.Column)
		}
		if d.Granularity != "" {
			formatted, err := p.b.Dialect.FormatDate(d.Granularity, ex)
			if err != nil {
				return err
			}
			ex = formatted
		}
		groupBys = append(groupBys, ex)
		next = append(next, pipeCol{name: d.Column, ex: ex, format: d.Granularity})
	}

	for _, m := range o.Measures {
		ex, err := p.measureExpr(m)
		if err != nil {
			return err
		}
		label := m.Label
		if label == "" {
			label = m.Aggregation
		}
		next = append(next, pipeCol{name: label, ex: ex, typ: measureType(m.Aggregation)})
	}

	if len(groupBys) > 0 {
		p.ds = p.ds.GroupBy(groupBys...)
	}
	p.cols = next
	p.grouped = true
	return nil
}

// measureExpr compiles one named aggregate, including the count_if/sum_if
// conditional forms driven by the {column, operator, value} sub-language.
func (p *pipeline) measureExpr(m qdef.Measure) (exp.Expression, error) {
	name := strings.ToLower(m.Aggregation)

	switch name {
	case "count_if", "sum_if":
		cond, err := p.parseAggConditions(m.Conditions)
		if err != nil {
			return nil, err
		}
		if name == "count_if" {
			return dialect.ConditionalCount(cond), nil
		}
		val, ok := p.colExpr(m.Column)
		if !ok {
			return nil, qdef.Definitionf("summarize", "measure column %q cannot be resolved from the preceding steps", m.Column)
		}
		return dialect.ConditionalSum(cond, val), nil
	}

	agg, ok := p.ev.d.Aggregation(name)
	if !ok {
		return nil, qdef.Definitionf("aggregation", "aggregation %q not implemented", m.Aggregation)
	}
	if m.Column == "" || m.Column == "*" {
		return agg(nil), nil
	}
	ex, ok := p.colExpr(m.Column)
	if !ok {
		return nil, qdef.Definitionf("summarize", "measure column %q cannot be resolved from the preceding steps", m.Column)
	}
	return agg(ex), nil
}

// parseAggConditions compiles the aggregation-condition sub-language: a
// JSON array of {column, operator, value} objects combined with AND. It is
// parsed independently of the main filter-tree grammar.
func (p *pipeline) parseAggConditions(raw json.RawMessage) (exp.Expression, error) {
	if len(raw) == 0 {
		return trueExpr(), nil
	}
	var conds []qdef.FilterCondition
	if err := json.Unmarshal(raw, &conds); err != nil {
		return nil, qdef.Definitionf("aggregation", "malformed aggregate conditions: %v", err)
	}
	if len(conds) == 0 {
		return trueExpr(), nil
	}
	preds := make([]exp.Expression, 0, len(conds))
	for _, c := range conds {
		pred, err := p.conditionPred(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return goqu.And(preds...), nil
}

func (p *pipeline) applyOrderBy(o *qdef.OrderBy) error {
	p.wrapIf(p.limited)

	ex, ok := p.colExpr(o.Column)
	if !ok {
		return qdef.Definitionf("order_by", "column %q cannot be resolved from the preceding steps", o.Column)
	}
	ordered := goqu.L("?", ex)
	if o.Direction == "desc" {
		p.ds = p.ds.OrderAppend(ordered.Desc())
	} else {
		p.ds = p.ds.OrderAppend(ordered.Asc())
	}
	return nil
}

func (p *pipeline) applyLimit(o *qdef.Limit) error {
	if o.Limit <= 0 {
		return qdef.Definitionf("limit", "limit must be a positive integer, got %d", o.Limit)
	}
	if !p.limited || o.Limit < p.limit {
		p.limit = o.Limit
	}
	p.limited = true
	return nil
}

// applyPivot compiles pivot_wider: the SQL half groups by rows plus the
// pivot columns and aggregates the values; the executor unstacks the column
// dimension into a wide table afterwards.
func (p *pipeline) applyPivot(o *qdef.PivotWider) error {
	if len(o.Columns) == 0 || len(o.Values) == 0 {
		return qdef.Definitionf("pivot_wider", "pivot_wider needs at least one column and one value")
	}

	dims := make([]qdef.Dimension, 0, len(o.Rows)+len(o.Columns))
	for _, r := range o.Rows {
		dims = append(dims, qdef.Dimension{Column: r})
	}
	for _, c := range o.Columns {
		dims = append(dims, qdef.Dimension{Column: c})
	}
	measures := make([]qdef.Measure, 0, len(o.Values))
	valueLabels := make([]string, 0, len(o.Values))
	for _, v := range o.Values {
		measures = append(measures, qdef.Measure{Label: v.Column, Column: v.Column, Aggregation: v.Aggregation})
		valueLabels = append(valueLabels, v.Column)
	}

	if err := p.applySummarize(&qdef.Summarize{Measures: measures, Dimensions: dims}); err != nil {
		return err
	}
	p.pivot = &PivotSpec{Rows: o.Rows, Columns: o.Columns, Values: valueLabels}
	return nil
}

// measureType maps an aggregation to the semantic type of its output when
// it is known regardless of input type.
func measureType(aggregation string) string {
	switch strings.ToLower(aggregation) {
	case "count", "count distinct", "distinct_count", "count_if":
		return "Integer"
	default:
		return ""
	}
}
