package dialect

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/qdef"
)

// passthrough registers a function that maps 1:1 to a native SQL function.
func passthrough(sqlName string) FunctionFn {
	return func(args ...any) (exp.Expression, error) {
		return goqu.Func(sqlName, args...), nil
	}
}

// argCountErr reports a wrong argument count for a function.
func argCountErr(name string, want, got int) error {
	return qdef.Definitionf("function", "%s expects %d arguments, got %d", name, want, got)
}

// fixedArity wraps a FunctionFn with an exact argument-count check.
func fixedArity(name string, n int, fn FunctionFn) FunctionFn {
	return func(args ...any) (exp.Expression, error) {
		if len(args) != n {
			return nil, qdef.Definitionf("function", "%s expects %d arguments, got %d", name, n, len(args))
		}
		return fn(args...)
	}
}

// literalString unwraps an argument that must be a plain string literal
// (a date-diff unit, a cast target). Expressions are rejected.
func literalString(name string, arg any) (string, error) {
	switch v := arg.(type) {
	case string:
		return v, nil
	default:
		return "", qdef.Definitionf("function", "%s expects a literal string argument", name)
	}
}

// baseFunctions builds the scalar-function table shared by every dialect.
// Dialect files overlay backend-specific entries (date extraction, ifnull,
// date arithmetic) on top of this map.
func baseFunctions() map[string]FunctionFn {
	fns := map[string]FunctionFn{
		"abs":     passthrough("ABS"),
		"ceil":    passthrough("CEIL"),
		"floor":   passthrough("FLOOR"),
		"round":   passthrough("ROUND"),
		"lower":   passthrough("LOWER"),
		"upper":   passthrough("UPPER"),
		"trim":    passthrough("TRIM"),
		"length":  passthrough("LENGTH"),
		"replace": passthrough("REPLACE"),
		"concat":  passthrough("CONCAT"),
		"coalesce": func(args ...any) (exp.Expression, error) {
			return goqu.COALESCE(args...), nil
		},

		// Predicate helpers usable from calculated-column text.
		"if_else": fixedArity("if_else", 3, func(args ...any) (exp.Expression, error) {
			return goqu.Case().When(asExpr(args[0]), args[1]).Else(args[2]), nil
		}),
		"is_null": fixedArity("is_null", 1, func(args ...any) (exp.Expression, error) {
			return exp.NewBooleanExpression(exp.IsOp, asExpr(args[0]), nil), nil
		}),
		"contains": fixedArity("contains", 2, func(args ...any) (exp.Expression, error) {
			s, err := literalString("contains", args[1])
			if err != nil {
				return nil, err
			}
			return exp.NewBooleanExpression(exp.LikeOp, asExpr(args[0]), "%"+s+"%"), nil
		}),
		"in": func(args ...any) (exp.Expression, error) {
			if len(args) < 2 {
				return nil, qdef.Definitionf("function", "in expects a column and at least one value")
			}
			return exp.NewBooleanExpression(exp.InOp, asExpr(args[0]), args[1:]), nil
		},
	}

	// case(cond1, val1, cond2, val2, ..., default): the generic case/when
	// helper of calculated columns. An odd trailing argument is the ELSE.
	fns["case"] = func(args ...any) (exp.Expression, error) {
		if len(args) < 3 {
			return nil, qdef.Definitionf("function", "case expects at least condition, value, default")
		}
		c := goqu.Case()
		i := 0
		for ; i+1 < len(args); i += 2 {
			c = c.When(asExpr(args[i]), args[i+1])
		}
		if i < len(args) {
			c = c.Else(args[i])
		}
		return c, nil
	}

	return fns
}

// mergeFunctions overlays dialect-specific entries on the shared table.
func mergeFunctions(base map[string]FunctionFn, overlay map[string]FunctionFn) map[string]FunctionFn {
	out := make(map[string]FunctionFn, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// normalizeUnit canonicalizes a date_diff/date_add unit literal.
func normalizeUnit(unit string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s")
}
