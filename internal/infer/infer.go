// Package infer assigns a semantic type to result columns whose type is
// not otherwise known, e.g. native-SQL results or script output.
//
// Inference is widest-type: when sampled values disagree, the column gets
// the least-assuming type rather than the most common one. A single text
// value makes the whole column String, and a column mixing numbers with
// dates also collapses to String, so numeric-looking text never silently
// coerces a genuinely mixed column. Ambiguity is resolved by this
// precedence, never by an error.
package infer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Semantic type tags. These match the declared column types used in
// query definitions.
const (
	TypeString   = "String"
	TypeInteger  = "Integer"
	TypeDecimal  = "Decimal"
	TypeDatetime = "Datetime"
)

// dateLayouts accepted when probing a string value for a date. Ordered
// most to least specific so a timestamp is not truncated by a
// shorter-prefix match.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Value infers the semantic type of a single scalar. Nil has no type and
// returns the empty string; callers skip nulls when sampling.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		return floatType(float64(x))
	case float64:
		return floatType(x)
	case time.Time:
		return TypeDatetime
	case []byte:
		return stringType(string(x))
	case string:
		return stringType(x)
	default:
		return TypeString
	}
}

// Column infers the widest type across sampled values. Precedence:
// any String makes the column String; numbers mixed with dates make it
// String; otherwise Decimal beats Integer beats Datetime. A column with
// no typed samples (empty, or all null) is String.
func Column(values []any) string {
	var hasString, hasInteger, hasDecimal, hasDatetime bool
	for _, v := range values {
		switch Value(v) {
		case TypeString:
			hasString = true
		case TypeInteger:
			hasInteger = true
		case TypeDecimal:
			hasDecimal = true
		case TypeDatetime:
			hasDatetime = true
		}
	}
	switch {
	case hasString:
		return TypeString
	case hasDatetime && (hasInteger || hasDecimal):
		return TypeString
	case hasDecimal:
		return TypeDecimal
	case hasInteger:
		return TypeInteger
	case hasDatetime:
		return TypeDatetime
	default:
		return TypeString
	}
}

// stringType probes text: numeric coercion first, then date parse, then
// String. Decimal parsing is exact, so "0.1" stays Decimal and "10" stays
// Integer without a float round-trip.
func stringType(s string) string {
	if s == "" {
		return TypeString
	}
	if d, err := decimal.NewFromString(s); err == nil {
		if d.IsInteger() {
			return TypeInteger
		}
		return TypeDecimal
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return TypeDatetime
		}
	}
	return TypeString
}

func floatType(f float64) string {
	if f == float64(int64(f)) {
		return TypeInteger
	}
	return TypeDecimal
}
