package dialect

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// baseAggregations builds the aggregation table shared by every dialect.
// groupConcat varies per backend and is supplied by the caller.
func baseAggregations(groupConcat AggregationFn) map[string]AggregationFn {
	return map[string]AggregationFn{
		"sum": func(arg exp.Expression) exp.Expression { return goqu.SUM(arg) },
		"min": func(arg exp.Expression) exp.Expression { return goqu.MIN(arg) },
		"max": func(arg exp.Expression) exp.Expression { return goqu.MAX(arg) },
		"avg": func(arg exp.Expression) exp.Expression { return goqu.AVG(arg) },
		"count": func(arg exp.Expression) exp.Expression {
			if arg == nil {
				return goqu.COUNT(goqu.Star())
			}
			return goqu.COUNT(arg)
		},
		"count distinct":  countDistinct,
		"distinct_count":  countDistinct,
		"distinct":        countDistinct,
		"cumulative sum":  func(arg exp.Expression) exp.Expression { return goqu.L("SUM(?) OVER (ORDER BY 1 ROWS UNBOUNDED PRECEDING)", arg) },
		"cumulative count": func(arg exp.Expression) exp.Expression { return goqu.L("COUNT(?) OVER (ORDER BY 1 ROWS UNBOUNDED PRECEDING)", arg) },
		"group_concat":    groupConcat,
	}
}

func countDistinct(arg exp.Expression) exp.Expression {
	if arg == nil {
		return goqu.COUNT(goqu.Star())
	}
	return goqu.COUNT(goqu.DISTINCT(arg))
}

// ConditionalSum builds SUM(CASE WHEN cond THEN value ELSE 0 END).
//
// Not every backend supports a native filtered-aggregate syntax
// (FILTER (WHERE ...)), so sum_if and count_if compile to the CASE form on
// all of them.
func ConditionalSum(cond exp.Expression, value exp.Expression) exp.Expression {
	return goqu.SUM(goqu.Case().When(cond, value).Else(goqu.V(0)))
}

// ConditionalCount builds SUM(CASE WHEN cond THEN 1 ELSE 0 END).
func ConditionalCount(cond exp.Expression) exp.Expression {
	return ConditionalSum(cond, goqu.V(1))
}
