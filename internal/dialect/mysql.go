package dialect

import (
	"github.com/doug-martin/goqu/v9"
	// Register the goqu dialect used for SQL generation.
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
)

var mysqlDialect = &Dialect{
	Backend:       "mysql",
	GoquName:      "mysql",
	Operators:     baseOperators(exp.LikeOp, exp.NotLikeOp),
	Functions:     mergeFunctions(baseFunctions(), mysqlFunctions),
	Aggregations:  baseAggregations(mysqlGroupConcat),
	DateFormats:   mysqlDateFormats,
	DateParse:     mysqlDateParse,
	EscapePercent: true,
}

func mysqlGroupConcat(arg exp.Expression) exp.Expression {
	return goqu.L("GROUP_CONCAT(?)", arg)
}

var mysqlFunctions = map[string]FunctionFn{
	"ifnull":      passthrough("IFNULL"),
	"now":         func(...any) (exp.Expression, error) { return goqu.L("NOW()"), nil },
	"today":       func(...any) (exp.Expression, error) { return goqu.L("CURDATE()"), nil },
	"year":        passthrough("YEAR"),
	"quarter":     passthrough("QUARTER"),
	"month":       passthrough("MONTH"),
	"day":         passthrough("DAY"),
	"hour":        passthrough("HOUR"),
	"minute":      passthrough("MINUTE"),
	"second":      passthrough("SECOND"),
	"day_of_week": passthrough("DAYOFWEEK"),
	"day_of_year": passthrough("DAYOFYEAR"),
	"week":        passthrough("WEEK"),

	"date_diff": fixedArity("date_diff", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_diff", args[0])
		if err != nil {
			return nil, err
		}
		return goqu.L("TIMESTAMPDIFF("+mysqlUnit(unit)+", ?, ?)", asExpr(args[1]), asExpr(args[2])), nil
	}),
	"date_add": fixedArity("date_add", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_add", args[0])
		if err != nil {
			return nil, err
		}
		return goqu.L("DATE_ADD(?, INTERVAL ? "+mysqlUnit(unit)+")", asExpr(args[1]), asExpr(args[2])), nil
	}),
	"date_format": fixedArity("date_format", 2, func(args ...any) (exp.Expression, error) {
		f, err := literalString("date_format", args[1])
		if err != nil {
			return nil, err
		}
		return goqu.L("DATE_FORMAT(?, ?)", asExpr(args[0]), f), nil
	}),
}

// mysqlUnit maps a normalized unit to the MySQL interval keyword. Unknown
// units pass through upper-cased; the backend rejects them with a syntax
// error that the executor classifies.
func mysqlUnit(unit string) string {
	switch normalizeUnit(unit) {
	case "second":
		return "SECOND"
	case "minute":
		return "MINUTE"
	case "hour":
		return "HOUR"
	case "day":
		return "DAY"
	case "week":
		return "WEEK"
	case "month":
		return "MONTH"
	case "quarter":
		return "QUARTER"
	case "year":
		return "YEAR"
	default:
		return "DAY"
	}
}

func mysqlFmt(format string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("DATE_FORMAT(?, ?)", col, format)
	}
}

var mysqlDateFormats = map[string]DateExprFn{
	"Minute": mysqlFmt("%Y-%m-%d %H:%i"),
	"Hour":   mysqlFmt("%Y-%m-%d %H:00"),
	"Day":    mysqlFmt("%Y-%m-%d"),
	"Week": func(col exp.Expression) exp.Expression {
		// Truncate to the week's first day (Sunday start).
		return goqu.L("DATE_FORMAT(DATE_SUB(?, INTERVAL (DAYOFWEEK(?) - 1) DAY), '%Y-%m-%d')", col, col)
	},
	"Month": mysqlFmt("%Y-%m-01"),
	"Quarter": func(col exp.Expression) exp.Expression {
		// First day of the quarter, not the quarter number.
		return goqu.L("MAKEDATE(YEAR(?), 1) + INTERVAL (QUARTER(?) - 1) QUARTER", col, col)
	},
	"Year":            mysqlFmt("%Y-01-01"),
	"Minute of Hour":  func(col exp.Expression) exp.Expression { return goqu.L("MINUTE(?)", col) },
	"Hour of Day":     mysqlFmt("%H:00"),
	"Day of Week":     mysqlFmt("%w"),
	"Day of Month":    mysqlFmt("%d"),
	"Day of Year":     mysqlFmt("%j"),
	"Month of Year":   mysqlFmt("%m"),
	"Quarter of Year": func(col exp.Expression) exp.Expression { return goqu.L("QUARTER(?)", col) },
}

func mysqlParse(format string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("STR_TO_DATE(?, ?)", col, format)
	}
}

var mysqlDateParse = map[string]DateExprFn{
	"Minute": mysqlParse("%Y-%m-%d %H:%i"),
	"Hour":   mysqlParse("%Y-%m-%d %H:00"),
	"Day":    mysqlParse("%Y-%m-%d"),
	"Week":   mysqlParse("%Y-%m-%d"),
	"Month":  mysqlParse("%Y-%m-01"),
	"Year":   mysqlParse("%Y-01-01"),
}
