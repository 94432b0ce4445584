package dialect

import (
	"github.com/doug-martin/goqu/v9"
	// Register the goqu dialect used for SQL generation.
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
)

var postgresDialect = &Dialect{
	Backend:      "postgres",
	GoquName:     "postgres",
	Operators:    baseOperators(exp.ILikeOp, exp.NotILikeOp),
	Functions:    mergeFunctions(baseFunctions(), postgresFunctions),
	Aggregations: baseAggregations(postgresGroupConcat),
	DateFormats:  postgresDateFormats,
	DateParse:    postgresDateParse,
}

func postgresGroupConcat(arg exp.Expression) exp.Expression {
	return goqu.L("STRING_AGG(?::text, ',')", arg)
}

func pgExtract(field string) FunctionFn {
	return func(args ...any) (exp.Expression, error) {
		if len(args) != 1 {
			return nil, argCountErr(field, 1, len(args))
		}
		return goqu.L("EXTRACT("+field+" FROM ?)", asExpr(args[0])), nil
	}
}

var postgresFunctions = map[string]FunctionFn{
	// Postgres has no IFNULL; COALESCE carries the same semantics.
	"ifnull": func(args ...any) (exp.Expression, error) {
		return goqu.COALESCE(args...), nil
	},
	"now":         func(...any) (exp.Expression, error) { return goqu.L("NOW()"), nil },
	"today":       func(...any) (exp.Expression, error) { return goqu.L("CURRENT_DATE"), nil },
	"year":        pgExtract("YEAR"),
	"quarter":     pgExtract("QUARTER"),
	"month":       pgExtract("MONTH"),
	"day":         pgExtract("DAY"),
	"hour":        pgExtract("HOUR"),
	"minute":      pgExtract("MINUTE"),
	"second":      pgExtract("SECOND"),
	"day_of_week": pgExtract("DOW"),
	"day_of_year": pgExtract("DOY"),
	"week":        pgExtract("WEEK"),

	"date_diff": fixedArity("date_diff", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_diff", args[0])
		if err != nil {
			return nil, err
		}
		a, b := asExpr(args[1]), asExpr(args[2])
		switch normalizeUnit(unit) {
		case "day":
			return goqu.L("(?::date - ?::date)", b, a), nil
		case "month":
			return goqu.L("((EXTRACT(YEAR FROM ?) - EXTRACT(YEAR FROM ?)) * 12 + EXTRACT(MONTH FROM ?) - EXTRACT(MONTH FROM ?))", b, a, b, a), nil
		case "year":
			return goqu.L("(EXTRACT(YEAR FROM ?) - EXTRACT(YEAR FROM ?))", b, a), nil
		default:
			return goqu.L("EXTRACT(EPOCH FROM (?::timestamp - ?::timestamp)) / "+pgUnitSeconds(unit), b, a), nil
		}
	}),
	"date_add": fixedArity("date_add", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_add", args[0])
		if err != nil {
			return nil, err
		}
		return goqu.L("(? + (?::int * INTERVAL '1 "+normalizeUnit(unit)+"'))", asExpr(args[1]), asExpr(args[2])), nil
	}),
	"date_format": fixedArity("date_format", 2, func(args ...any) (exp.Expression, error) {
		f, err := literalString("date_format", args[1])
		if err != nil {
			return nil, err
		}
		return goqu.L("TO_CHAR(?, ?)", asExpr(args[0]), f), nil
	}),
}

func pgUnitSeconds(unit string) string {
	switch normalizeUnit(unit) {
	case "minute":
		return "60"
	case "hour":
		return "3600"
	default:
		return "1"
	}
}

func pgTrunc(field string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("DATE_TRUNC('"+field+"', ?)", col)
	}
}

func pgTruncDate(field string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("DATE_TRUNC('"+field+"', ?)::date", col)
	}
}

func pgExtractExpr(field string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("EXTRACT("+field+" FROM ?)::int", col)
	}
}

var postgresDateFormats = map[string]DateExprFn{
	"Minute":          pgTrunc("minute"),
	"Hour":            pgTrunc("hour"),
	"Day":             pgTruncDate("day"),
	"Week": func(col exp.Expression) exp.Expression {
		// Week truncation starts on Sunday, matching the other backends;
		// DATE_TRUNC('week') would start on Monday.
		return goqu.L("(?::date - EXTRACT(DOW FROM ?)::int)", col, col)
	},
	"Month":           pgTruncDate("month"),
	"Quarter":         pgTruncDate("quarter"),
	"Year":            pgTruncDate("year"),
	"Minute of Hour":  pgExtractExpr("MINUTE"),
	"Hour of Day":     pgExtractExpr("HOUR"),
	"Day of Week":     pgExtractExpr("DOW"),
	"Day of Month":    pgExtractExpr("DAY"),
	"Day of Year":     pgExtractExpr("DOY"),
	"Month of Year":   pgExtractExpr("MONTH"),
	"Quarter of Year": pgExtractExpr("QUARTER"),
}

func pgParse(format string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("TO_TIMESTAMP(?::text, '"+format+"')", col)
	}
}

var postgresDateParse = map[string]DateExprFn{
	"Minute": pgParse("YYYY-MM-DD HH24:MI"),
	"Hour":   pgParse("YYYY-MM-DD HH24:00"),
	"Day":    pgParse("YYYY-MM-DD"),
	"Week":   pgParse("YYYY-MM-DD"),
	"Month":  pgParse("YYYY-MM-DD"),
	"Quarter": pgParse("YYYY-MM-DD"),
	"Year":    pgParse("YYYY-MM-DD"),
}
