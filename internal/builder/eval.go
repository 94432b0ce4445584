package builder

import (
	"encoding/json"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/expr"
	"github.com/quarrydata/quarry/internal/qdef"
)

// tableSet tracks the tables an expression tree references, in first-use
// order. Resolving a Column adds its table as a side effect: declarative
// filters may reference tables the definition never listed, and
// auto-discovery is part of the evaluation contract.
type tableSet struct {
	ordered []string
	seen    map[string]bool
}

func newTableSet() *tableSet {
	return &tableSet{seen: map[string]bool{}}
}

func (s *tableSet) add(table string) {
	if table == "" || s.seen[table] {
		return
	}
	s.seen[table] = true
	s.ordered = append(s.ordered, table)
}

// columnResolver maps a bare column name to the expression it stands for in
// the current relation. The pipeline builder supplies one; the legacy
// builder resolves against declared tables instead.
type columnResolver func(name string) (exp.Expression, bool)

// evaluator walks expression trees and emits dialect expressions.
type evaluator struct {
	d       *dialect.Dialect
	tables  *tableSet
	columns columnResolver
	clock   dialect.Clock
	time    dialect.TimeConfig
}

// trueExpr is the unconditionally true predicate used for empty filter sets.
func trueExpr() exp.Expression { return goqu.L("1 = 1") }

// predicate compiles an expression tree to a boolean backend predicate.
func (ev *evaluator) predicate(e expr.Expr) (exp.Expression, error) {
	v, err := ev.value(e)
	if err != nil {
		return nil, err
	}
	if ex, ok := v.(exp.Expression); ok {
		return ex, nil
	}
	// A bare literal as a predicate: render it as a value expression.
	return goqu.L("?", goqu.V(v)), nil
}

// value compiles an expression tree node. The result is an exp.Expression
// for anything structural and a raw Go scalar for literals, so operator and
// function implementations can inspect literal values directly.
func (ev *evaluator) value(e expr.Expr) (any, error) {
	switch n := e.(type) {
	case expr.Literal:
		return n.Value, nil

	case expr.Column:
		return ev.column(n)

	case expr.Logical:
		return ev.logical(n)

	case expr.Binary:
		return ev.binary(n)

	case expr.Call:
		return ev.call(n)

	default:
		return nil, qdef.Definitionf("expression", "invalid expression node %T", e)
	}
}

func (ev *evaluator) column(n expr.Column) (exp.Expression, error) {
	if n.Table == "" {
		if ev.columns != nil {
			if col, ok := ev.columns(n.Column); ok {
				return col, nil
			}
			return nil, qdef.Definitionf("column", "column %q cannot be resolved from the preceding steps", n.Column)
		}
		return goqu.C(n.Column), nil
	}
	if ev.tables != nil {
		ev.tables.add(n.Table)
	}
	return goqu.T(n.Table).Col(n.Column), nil
}

func (ev *evaluator) logical(n expr.Logical) (exp.Expression, error) {
	if len(n.Conditions) == 0 {
		return trueExpr(), nil
	}
	preds := make([]exp.Expression, 0, len(n.Conditions))
	for _, c := range n.Conditions {
		p, err := ev.predicate(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if n.Operator == "||" {
		return goqu.Or(preds...), nil
	}
	return goqu.And(preds...), nil
}

func (ev *evaluator) binary(n expr.Binary) (exp.Expression, error) {
	op := n.Operator

	// "is" with a "set"/"not set" literal is sugar for the null tests.
	if op == "is" {
		if lit, ok := n.Right.(expr.Literal); ok {
			switch strings.ToLower(strings.TrimSpace(toString(lit.Value))) {
			case "set":
				op = "is_set"
			case "not set":
				op = "is_not_set"
			}
		}
	}

	leftVal, err := ev.value(n.Left)
	if err != nil {
		return nil, err
	}
	left := asOperand(leftVal)

	right, err := ev.rightOperand(op, n.Right)
	if err != nil {
		return nil, err
	}
	if op == "timespan" {
		// The boundaries are already resolved; the comparison is a between.
		op = "between"
	}

	fn, err := ev.d.Operator(op)
	if err != nil {
		return nil, err
	}
	return fn(left, right), nil
}

// rightOperand shapes the right-hand side of a binary expression according
// to the operator's literal-interpretation rules.
func (ev *evaluator) rightOperand(op string, right expr.Expr) (any, error) {
	switch op {
	case "is_set", "is_not_set":
		// The operator alone decides; the value is ignored.
		return nil, nil

	case "in", "not_in", "between", "not_between":
		// List operators split a literal into its parts.
		if lit, ok := right.(expr.Literal); ok {
			return splitList(lit.Value), nil
		}
		v, err := ev.value(right)
		if err != nil {
			return nil, err
		}
		if vals, ok := v.([]any); ok {
			return vals, nil
		}
		return []any{v}, nil

	case "timespan":
		// A relative timespan resolves to concrete date boundaries at
		// evaluation time, then compiles as a between.
		lit, ok := right.(expr.Literal)
		if !ok {
			return nil, qdef.Definitionf("timespan", "timespan operator requires a literal value")
		}
		start, end, err := dialect.ResolveTimespan(toString(lit.Value), ev.clock, ev.time)
		if err != nil {
			return nil, err
		}
		return []any{start.Format("2006-01-02"), end.Format("2006-01-02")}, nil

	default:
		return ev.value(right)
	}
}

// call compiles a function call. Aggregations take priority over scalar
// functions when the name collides; unknown names are a hard failure.
func (ev *evaluator) call(n expr.Call) (any, error) {
	name := strings.ToLower(n.Function)

	switch name {
	case "count_if":
		if len(n.Arguments) != 1 {
			return nil, qdef.Definitionf("function", "count_if expects a single condition")
		}
		cond, err := ev.predicate(n.Arguments[0])
		if err != nil {
			return nil, err
		}
		return dialect.ConditionalCount(cond), nil

	case "sum_if":
		if len(n.Arguments) != 2 {
			return nil, qdef.Definitionf("function", "sum_if expects a condition and a value")
		}
		cond, err := ev.predicate(n.Arguments[0])
		if err != nil {
			return nil, err
		}
		val, err := ev.value(n.Arguments[1])
		if err != nil {
			return nil, err
		}
		return dialect.ConditionalSum(cond, asOperand(val)), nil

	case "timespan":
		// timespan(col, "last 7 days") from calculated-column text.
		if len(n.Arguments) != 2 {
			return nil, qdef.Definitionf("function", "timespan expects a column and a span")
		}
		col, err := ev.value(n.Arguments[0])
		if err != nil {
			return nil, err
		}
		lit, ok := n.Arguments[1].(expr.Literal)
		if !ok {
			return nil, qdef.Definitionf("timespan", "timespan operator requires a literal value")
		}
		start, end, err := dialect.ResolveTimespan(toString(lit.Value), ev.clock, ev.time)
		if err != nil {
			return nil, err
		}
		fn, err := ev.d.Operator("between")
		if err != nil {
			return nil, err
		}
		return fn(asOperand(col), []any{start.Format("2006-01-02"), end.Format("2006-01-02")}), nil
	}

	if agg, ok := ev.d.Aggregation(name); ok {
		if len(n.Arguments) == 0 {
			return agg(nil), nil
		}
		arg, err := ev.value(n.Arguments[0])
		if err != nil {
			return nil, err
		}
		return agg(asOperand(arg)), nil
	}

	fn, err := ev.d.Function(name)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		v, err := ev.value(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(args...)
}

// conditionOn compiles one {column, operator, value} condition from the
// simple sub-language against an already-resolved left operand. Value
// shaping follows the same literal-interpretation rules as the main
// expression grammar: list operators split the value, null tests ignore it,
// timespans resolve to concrete boundaries.
func conditionOn(ev *evaluator, left exp.Expression, operator string, rawValue []byte) (exp.Expression, error) {
	if operator == "" {
		return nil, qdef.Definitionf("filter", "condition has no operator")
	}

	var value any
	if len(rawValue) > 0 {
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return nil, qdef.Definitionf("filter", "malformed condition value: %v", err)
		}
	}

	var right any
	switch operator {
	case "is_set", "is_not_set":
		right = nil
	case "in", "not_in", "between", "not_between":
		if arr, ok := value.([]any); ok {
			right = arr
		} else {
			right = splitList(value)
		}
	case "timespan":
		start, end, err := dialect.ResolveTimespan(toString(value), ev.clock, ev.time)
		if err != nil {
			return nil, err
		}
		operator = "between"
		right = []any{start.Format("2006-01-02"), end.Format("2006-01-02")}
	default:
		right = value
	}

	fn, err := ev.d.Operator(operator)
	if err != nil {
		return nil, err
	}
	return fn(left, right), nil
}

// asOperand converts an evaluated value to an expression operand.
func asOperand(v any) exp.Expression {
	if e, ok := v.(exp.Expression); ok {
		return e
	}
	return goqu.V(v)
}

// splitList turns a literal paired with a list operator into its parts. A
// comma-separated string splits on commas with whitespace trimmed; anything
// else becomes a single-element list.
func splitList(v any) []any {
	s, ok := v.(string)
	if !ok {
		return []any{v}
	}
	parts := strings.Split(s, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
