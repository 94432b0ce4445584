package dialect

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// asExpr converts an operator's right operand to an expression. Raw scalars
// become bound values.
func asExpr(v any) exp.Expression {
	if e, ok := v.(exp.Expression); ok {
		return e
	}
	return goqu.V(v)
}

// scalarOf unwraps a right operand to a plain value for wildcard wrapping.
// Expressions pass through untouched (wildcards only apply to literals).
func scalarOf(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

// patternOp builds a LIKE-family operator that places wildcards around a
// literal operand according to position.
func patternOp(op exp.BooleanOperation, prefix, suffix string) OperatorFn {
	return func(left exp.Expression, right any) exp.Expression {
		if s, ok := scalarOf(right); ok {
			right = prefix + s + suffix
		}
		return exp.NewBooleanExpression(op, left, right)
	}
}

func booleanOp(op exp.BooleanOperation) OperatorFn {
	return func(left exp.Expression, right any) exp.Expression {
		return exp.NewBooleanExpression(op, left, right)
	}
}

func arithmeticOp(symbol string) OperatorFn {
	tmpl := "(? " + symbol + " ?)"
	return func(left exp.Expression, right any) exp.Expression {
		return goqu.L(tmpl, left, asExpr(right))
	}
}

// baseOperators builds the operator table shared by every dialect.
// likeOp/notLikeOp vary: Postgres matches case-insensitively via ILIKE, the
// MySQL and SQLite families via plain LIKE.
func baseOperators(likeOp, notLikeOp exp.BooleanOperation) map[string]OperatorFn {
	ops := map[string]OperatorFn{
		// Arithmetic.
		"+": arithmeticOp("+"),
		"-": arithmeticOp("-"),
		"*": arithmeticOp("*"),
		"/": arithmeticOp("/"),

		// Comparison.
		"=":  booleanOp(exp.EqOp),
		"==": booleanOp(exp.EqOp),
		"!=": booleanOp(exp.NeqOp),
		">":  booleanOp(exp.GtOp),
		">=": booleanOp(exp.GteOp),
		"<":  booleanOp(exp.LtOp),
		"<=": booleanOp(exp.LteOp),

		// Logical. Operands are already-compiled predicates.
		"&&": func(left exp.Expression, right any) exp.Expression {
			return goqu.And(left, asExpr(right))
		},
		"||": func(left exp.Expression, right any) exp.Expression {
			return goqu.Or(left, asExpr(right))
		},

		// Membership. The evaluator shapes the right operand into a list.
		"in": func(left exp.Expression, right any) exp.Expression {
			return exp.NewBooleanExpression(exp.InOp, left, right)
		},
		"not_in": func(left exp.Expression, right any) exp.Expression {
			return exp.NewBooleanExpression(exp.NotInOp, left, right)
		},

		// Range. The evaluator shapes the right operand into a 2-element
		// list.
		"between": func(left exp.Expression, right any) exp.Expression {
			lo, hi := rangeBounds(right)
			return exp.NewRangeExpression(exp.BetweenOp, left, exp.NewRangeVal(lo, hi))
		},
		"not_between": func(left exp.Expression, right any) exp.Expression {
			lo, hi := rangeBounds(right)
			return exp.NewRangeExpression(exp.NotBetweenOp, left, exp.NewRangeVal(lo, hi))
		},

		// Bare IS for boolean literals; the evaluator rewrites the
		// "set"/"not set" forms to the null tests below first.
		"is": booleanOp(exp.IsOp),

		// Null tests. The operator alone decides; any value is ignored.
		"is_set": func(left exp.Expression, _ any) exp.Expression {
			return exp.NewBooleanExpression(exp.IsNotOp, left, nil)
		},
		"is_not_set": func(left exp.Expression, _ any) exp.Expression {
			return exp.NewBooleanExpression(exp.IsOp, left, nil)
		},
	}

	// Pattern operators: wildcard placement encodes the semantics.
	ops["like"] = patternOp(likeOp, "", "")
	ops["not_like"] = patternOp(notLikeOp, "", "")
	ops["contains"] = patternOp(likeOp, "%", "%")
	ops["not_contains"] = patternOp(notLikeOp, "%", "%")
	ops["starts_with"] = patternOp(likeOp, "", "%")
	ops["ends_with"] = patternOp(likeOp, "%", "")

	return ops
}

// rangeBounds splits a shaped between-operand into its bounds. A short list
// still compiles; the missing bound becomes NULL and matches nothing, which
// surfaces to the user as an empty result rather than a crash.
func rangeBounds(v any) (any, any) {
	vals, ok := v.([]any)
	if !ok {
		return v, v
	}
	var lo, hi any
	if len(vals) > 0 {
		lo = vals[0]
	}
	if len(vals) > 1 {
		hi = vals[1]
	}
	return lo, hi
}
