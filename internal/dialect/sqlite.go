package dialect

import (
	"github.com/doug-martin/goqu/v9"
	// Register the goqu dialect used for SQL generation.
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
)

var sqliteDialect = &Dialect{
	Backend:      "sqlite",
	GoquName:     "sqlite3",
	Operators:    baseOperators(exp.LikeOp, exp.NotLikeOp),
	Functions:    mergeFunctions(baseFunctions(), sqliteFunctions),
	Aggregations: baseAggregations(sqliteGroupConcat),
	DateFormats:  sqliteDateFormats,
	DateParse:    sqliteDateParse,
}

// The embedded warehouse stores imported tables in SQLite files, so it
// compiles with the SQLite tables under its own backend identity.
var warehouseDialect = &Dialect{
	Backend:      "warehouse",
	GoquName:     "sqlite3",
	Operators:    sqliteDialect.Operators,
	Functions:    sqliteDialect.Functions,
	Aggregations: sqliteDialect.Aggregations,
	DateFormats:  sqliteDialect.DateFormats,
	DateParse:    sqliteDialect.DateParse,
}

func sqliteGroupConcat(arg exp.Expression) exp.Expression {
	return goqu.L("GROUP_CONCAT(?)", arg)
}

// sqliteExtract pulls an integer strftime field out of a date column.
func sqliteExtract(field string) FunctionFn {
	return func(args ...any) (exp.Expression, error) {
		if len(args) != 1 {
			return nil, argCountErr(field, 1, len(args))
		}
		return goqu.L("CAST(STRFTIME('"+field+"', ?) AS INTEGER)", asExpr(args[0])), nil
	}
}

var sqliteFunctions = map[string]FunctionFn{
	"ifnull":      passthrough("IFNULL"),
	"concat":      concatViaOperator,
	"now":         func(...any) (exp.Expression, error) { return goqu.L("DATETIME('now')"), nil },
	"today":       func(...any) (exp.Expression, error) { return goqu.L("DATE('now')"), nil },
	"year":        sqliteExtract("%Y"),
	"month":       sqliteExtract("%m"),
	"day":         sqliteExtract("%d"),
	"hour":        sqliteExtract("%H"),
	"minute":      sqliteExtract("%M"),
	"second":      sqliteExtract("%S"),
	"day_of_week": sqliteExtract("%w"),
	"day_of_year": sqliteExtract("%j"),
	"week":        sqliteExtract("%W"),
	"quarter": fixedArity("quarter", 1, func(args ...any) (exp.Expression, error) {
		return goqu.L("((CAST(STRFTIME('%m', ?) AS INTEGER) + 2) / 3)", asExpr(args[0])), nil
	}),

	"date_diff": fixedArity("date_diff", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_diff", args[0])
		if err != nil {
			return nil, err
		}
		a, b := asExpr(args[1]), asExpr(args[2])
		switch normalizeUnit(unit) {
		case "day":
			return goqu.L("(JULIANDAY(?) - JULIANDAY(?))", b, a), nil
		case "month":
			return goqu.L("((CAST(STRFTIME('%Y', ?) AS INTEGER) - CAST(STRFTIME('%Y', ?) AS INTEGER)) * 12 + CAST(STRFTIME('%m', ?) AS INTEGER) - CAST(STRFTIME('%m', ?) AS INTEGER))", b, a, b, a), nil
		case "year":
			return goqu.L("(CAST(STRFTIME('%Y', ?) AS INTEGER) - CAST(STRFTIME('%Y', ?) AS INTEGER))", b, a), nil
		default:
			return goqu.L("((JULIANDAY(?) - JULIANDAY(?)) * "+sqliteUnitsPerDay(unit)+")", b, a), nil
		}
	}),
	"date_add": fixedArity("date_add", 3, func(args ...any) (exp.Expression, error) {
		unit, err := literalString("date_add", args[0])
		if err != nil {
			return nil, err
		}
		return goqu.L("DATETIME(?, '+' || ? || ' "+normalizeUnit(unit)+"')", asExpr(args[1]), asExpr(args[2])), nil
	}),
	"date_format": fixedArity("date_format", 2, func(args ...any) (exp.Expression, error) {
		f, err := literalString("date_format", args[1])
		if err != nil {
			return nil, err
		}
		return goqu.L("STRFTIME(?, ?)", f, asExpr(args[0])), nil
	}),
}

// concatViaOperator: SQLite has no CONCAT function, only the || operator.
func concatViaOperator(args ...any) (exp.Expression, error) {
	if len(args) == 0 {
		return goqu.V(""), nil
	}
	out := asExpr(args[0])
	for _, a := range args[1:] {
		out = goqu.L("(? || ?)", out, asExpr(a))
	}
	return out, nil
}

func sqliteUnitsPerDay(unit string) string {
	switch normalizeUnit(unit) {
	case "hour":
		return "24"
	case "minute":
		return "1440"
	case "second":
		return "86400"
	default:
		return "1"
	}
}

func sqliteFmt(format string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("STRFTIME('"+format+"', ?)", col)
	}
}

func sqliteInt(field string) DateExprFn {
	return func(col exp.Expression) exp.Expression {
		return goqu.L("CAST(STRFTIME('"+field+"', ?) AS INTEGER)", col)
	}
}

var sqliteDateFormats = map[string]DateExprFn{
	"Minute": sqliteFmt("%Y-%m-%d %H:%M"),
	"Hour":   sqliteFmt("%Y-%m-%d %H:00"),
	"Day": func(col exp.Expression) exp.Expression {
		return goqu.L("DATE(?)", col)
	},
	"Week": func(col exp.Expression) exp.Expression {
		// Truncate to the week's first day (Sunday start).
		return goqu.L("DATE(?, '-' || STRFTIME('%w', ?) || ' days')", col, col)
	},
	"Month": func(col exp.Expression) exp.Expression {
		return goqu.L("DATE(?, 'start of month')", col)
	},
	"Quarter": func(col exp.Expression) exp.Expression {
		// First day of the quarter, not the quarter number.
		return goqu.L("DATE(?, 'start of month', '-' || ((CAST(STRFTIME('%m', ?) AS INTEGER) - 1) % 3) || ' months')", col, col)
	},
	"Year": func(col exp.Expression) exp.Expression {
		return goqu.L("DATE(?, 'start of year')", col)
	},
	"Minute of Hour":  sqliteInt("%M"),
	"Hour of Day":     sqliteInt("%H"),
	"Day of Week":     sqliteInt("%w"),
	"Day of Month":    sqliteInt("%d"),
	"Day of Year":     sqliteInt("%j"),
	"Month of Year":   sqliteInt("%m"),
	"Quarter of Year": func(col exp.Expression) exp.Expression {
		return goqu.L("((CAST(STRFTIME('%m', ?) AS INTEGER) + 2) / 3)", col)
	},
}

var sqliteDateParse = map[string]DateExprFn{
	"Minute":  func(col exp.Expression) exp.Expression { return goqu.L("DATETIME(?)", col) },
	"Hour":    func(col exp.Expression) exp.Expression { return goqu.L("DATETIME(?)", col) },
	"Day":     func(col exp.Expression) exp.Expression { return goqu.L("DATE(?)", col) },
	"Week":    func(col exp.Expression) exp.Expression { return goqu.L("DATE(?)", col) },
	"Month":   func(col exp.Expression) exp.Expression { return goqu.L("DATE(?)", col) },
	"Quarter": func(col exp.Expression) exp.Expression { return goqu.L("DATE(?)", col) },
	"Year":    func(col exp.Expression) exp.Expression { return goqu.L("DATE(?)", col) },
}
