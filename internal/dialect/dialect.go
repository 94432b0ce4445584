// Package dialect provides per-backend capability objects for query
// compilation: operator, function, and aggregation registries plus date
// formatting and relative-timespan resolution.
//
// Every backend family (MySQL, Postgres, SQLite, and the embedded warehouse)
// gets its own Dialect value. The builders never hardcode backend SQL; they
// look every operator symbol, function name, aggregation name, and date
// format name up in the dialect selected by backend identity. Date-format
// semantics are identical across dialects even though the generated SQL
// differs: "Quarter" always truncates to the first day of the quarter,
// "Quarter of Year" always yields the 1-4 integer.
package dialect

import (
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/quarrydata/quarry/internal/qdef"
)

// OperatorFn builds a backend predicate or value from a resolved left
// operand and an operator-shaped right operand. The right operand has
// already been shaped by the evaluator: an exp.Expression for ordinary
// operands, a []any for list operators, or nil for null-test operators.
type OperatorFn func(left exp.Expression, right any) exp.Expression

// FunctionFn builds a backend expression from resolved call arguments.
// Arguments are exp.Expression for sub-expressions and raw Go scalars for
// literals, so implementations that need a literal (a date-diff unit, a
// format string) can inspect it directly.
type FunctionFn func(args ...any) (exp.Expression, error)

// AggregationFn wraps a resolved argument in an aggregate. A nil argument
// means "the whole row" (COUNT(*)).
type AggregationFn func(arg exp.Expression) exp.Expression

// DateExprFn rewrites a column expression to a truncated/extracted form.
type DateExprFn func(col exp.Expression) exp.Expression

// Dialect is the capability object injected into the query builders.
//
// One generic builder parameterized by a Dialect replaces per-backend
// builder subclasses: control flow is shared, tables differ.
type Dialect struct {
	// Backend is the identity the dialect is selected by:
	// "mysql", "mariadb", "postgres", "sqlite", or "warehouse".
	Backend string

	// GoquName is the registered goqu dialect used for SQL generation.
	GoquName string

	Operators    map[string]OperatorFn
	Functions    map[string]FunctionFn
	Aggregations map[string]AggregationFn

	// DateFormats maps semantic format names ("Month", "Quarter", ...) to
	// truncation/extraction expressions. DateParse holds the inverse,
	// used to make a formatted value comparable at its original
	// granularity.
	DateFormats map[string]DateExprFn
	DateParse   map[string]DateExprFn

	// EscapePercent marks drivers that treat % in statement text as a
	// placeholder escape; literal percents are doubled before execution.
	EscapePercent bool
}

// ForBackend selects the dialect for a backend identity. The warehouse
// engine stores imported tables in SQLite files, so it shares the SQLite
// tables under its own identity.
func ForBackend(backend string) (*Dialect, error) {
	switch backend {
	case "mysql", "mariadb":
		return mysqlDialect, nil
	case "postgres", "postgresql":
		return postgresDialect, nil
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "warehouse", "duckdb":
		return warehouseDialect, nil
	default:
		return nil, qdef.Definitionf("data source", "unsupported backend %q", backend)
	}
}

// Operator looks up an operator symbol. Unknown symbols are a hard failure.
func (d *Dialect) Operator(symbol string) (OperatorFn, error) {
	if fn, ok := d.Operators[symbol]; ok {
		return fn, nil
	}
	return nil, qdef.Definitionf("operator", "operator %q not implemented", symbol)
}

// Function looks up a scalar function by name. Unknown names are a hard
// failure: "Function X not implemented".
func (d *Dialect) Function(name string) (FunctionFn, error) {
	if fn, ok := d.Functions[name]; ok {
		return fn, nil
	}
	return nil, qdef.Definitionf("function", "function %q not implemented", name)
}

// Aggregation looks up an aggregation by name. Returns false for unknown
// names so callers can fall through to the scalar function table;
// aggregations take priority on name collisions.
func (d *Dialect) Aggregation(name string) (AggregationFn, bool) {
	fn, ok := d.Aggregations[name]
	return fn, ok
}

// FormatDate applies a semantic date format to a column expression.
func (d *Dialect) FormatDate(format string, col exp.Expression) (exp.Expression, error) {
	if fn, ok := d.DateFormats[format]; ok {
		return fn(col), nil
	}
	return nil, qdef.Definitionf("date format", "unknown date format %q", format)
}

// ParseDate applies the inverse of FormatDate, recovering a value comparable
// against the unformatted column at the format's granularity.
func (d *Dialect) ParseDate(format string, col exp.Expression) (exp.Expression, error) {
	if fn, ok := d.DateParse[format]; ok {
		return fn(col), nil
	}
	// Formats without a registered inverse compare as-is.
	return col, nil
}

// DateFormatNames is the fixed enumeration of semantic date formats. Every
// dialect implements all of them.
var DateFormatNames = []string{
	"Minute",
	"Hour",
	"Day",
	"Week",
	"Month",
	"Quarter",
	"Year",
	"Minute of Hour",
	"Hour of Day",
	"Day of Week",
	"Day of Month",
	"Day of Year",
	"Month of Year",
	"Quarter of Year",
}
