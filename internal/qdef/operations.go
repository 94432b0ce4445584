package qdef

import (
	"encoding/json"
	"fmt"
)

// Op represents one typed step of a pipeline definition.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the pipeline
// builder while keeping the set of known operations closed.
type Op interface {
	opType() string
}

// Operation wraps an Op together with the raw JSON it was decoded from.
//
// Known operation types decode into their typed Op. Unknown types keep Op nil
// and survive solely as Raw; MarshalJSON re-emits Raw verbatim so that a
// document written by a newer editor round-trips through an older binary
// without loss. The pipeline builder treats a nil Op as a no-op passthrough.
type Operation struct {
	Type string
	Op   Op
	Raw  json.RawMessage
}

// Pipeline operation type tags. The enumeration is part of the wire contract.
const (
	OpSource      = "source"
	OpJoin        = "join"
	OpFilter      = "filter"
	OpFilterGroup = "filter_group"
	OpSelect      = "select"
	OpRename      = "rename"
	OpRemove      = "remove"
	OpMutate      = "mutate"
	OpCast        = "cast"
	OpSummarize   = "summarize"
	OpOrderBy     = "order_by"
	OpLimit       = "limit"
	OpPivotWider  = "pivot_wider"
)

// Source replaces the current relation with a resolved table.
type Source struct {
	Table TableRef `json:"table"`
}

func (Source) opType() string { return OpSource }

// Join joins another resolved table onto the current relation on a column
// equality. Duplicate-named columns from the right side are dropped.
type Join struct {
	Table       TableRef `json:"table"`
	JoinType    string   `json:"join_type,omitempty"` // default "inner"
	LeftColumn  string   `json:"left_column"`
	RightColumn string   `json:"right_column"`
}

func (Join) opType() string { return OpJoin }

// FilterCondition is one simple predicate in the {column, operator, value}
// sub-language. The same shape carries count_if/sum_if aggregate conditions.
type FilterCondition struct {
	Column   string          `json:"column"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Filter applies one boolean predicate. Either the simple condition fields or
// a full expression tree is set; Expression wins when both are present.
type Filter struct {
	FilterCondition
	Expression json.RawMessage `json:"expression,omitempty"`
}

func (Filter) opType() string { return OpFilter }

// FilterGroup combines several simple predicates with one logical operator.
type FilterGroup struct {
	LogicalOperator string            `json:"logical_operator"` // "&&" | "||"
	Filters         []FilterCondition `json:"filters"`
}

func (FilterGroup) opType() string { return OpFilterGroup }

// Select restricts the relation to the named columns, in the given order.
type Select struct {
	Columns []string `json:"columns"`
}

func (Select) opType() string { return OpSelect }

// Rename renames one column.
type Rename struct {
	Column  string `json:"column"`
	NewName string `json:"new_name"`
}

func (Rename) opType() string { return OpRename }

// Remove drops the named columns from the relation.
type Remove struct {
	Columns []string `json:"columns"`
}

func (Remove) opType() string { return OpRemove }

// Mutate adds a computed column. Expression is free-form calculated-column
// text evaluated by the restricted expression parser, cast to DataType.
type Mutate struct {
	Label      string `json:"label"`
	DataType   string `json:"data_type"`
	Expression string `json:"expression"`
}

func (Mutate) opType() string { return OpMutate }

// Cast changes a column's declared type.
type Cast struct {
	Column   string `json:"column"`
	DataType string `json:"data_type"`
}

func (Cast) opType() string { return OpCast }

// Measure is one named aggregate of a summarize step.
type Measure struct {
	Label       string          `json:"label"`
	Column      string          `json:"column,omitempty"`
	Aggregation string          `json:"aggregation"`
	Conditions  json.RawMessage `json:"conditions,omitempty"` // count_if/sum_if sub-language
}

// Dimension is one grouping key of a summarize step, with an optional date
// granularity applied before grouping.
type Dimension struct {
	Column      string `json:"column"`
	Granularity string `json:"granularity,omitempty"`
}

// Summarize groups by the dimensions and computes the measures.
type Summarize struct {
	Measures   []Measure   `json:"measures"`
	Dimensions []Dimension `json:"dimensions"`
}

func (Summarize) opType() string { return OpSummarize }

// OrderBy sorts the relation by one column.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"` // "asc" | "desc", default asc
}

func (OrderBy) opType() string { return OpOrderBy }

// Limit caps the relation's row count. The executor's hard cap still applies
// on top of any declared limit.
type Limit struct {
	Limit int `json:"limit"`
}

func (Limit) opType() string { return OpLimit }

// PivotValue names one aggregated cell value of a pivot_wider step.
type PivotValue struct {
	Column      string `json:"column"`
	Aggregation string `json:"aggregation"`
}

// PivotWider turns rows x columns into a wide table in one step: group by
// Rows plus Columns, aggregate Values, then unstack the column dimension.
type PivotWider struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Values  []PivotValue `json:"values"`
}

func (PivotWider) opType() string { return OpPivotWider }

// opEnvelope is the generic wire form of an operation.
type opEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalJSON decodes the tagged operation object. Unknown types are kept
// raw rather than rejected; see the package comment for why.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var env opEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode operation: %w", err)
	}
	o.Type = env.Type
	o.Raw = append(o.Raw[:0], data...)

	var op Op
	switch env.Type {
	case OpSource:
		op = &Source{}
	case OpJoin:
		op = &Join{}
	case OpFilter:
		op = &Filter{}
	case OpFilterGroup:
		op = &FilterGroup{}
	case OpSelect:
		op = &Select{}
	case OpRename:
		op = &Rename{}
	case OpRemove:
		op = &Remove{}
	case OpMutate:
		op = &Mutate{}
	case OpCast:
		op = &Cast{}
	case OpSummarize:
		op = &Summarize{}
	case OpOrderBy:
		op = &OrderBy{}
	case OpLimit:
		op = &Limit{}
	case OpPivotWider:
		op = &PivotWider{}
	default:
		// Unknown operation type: keep raw, no typed Op.
		return nil
	}
	if err := json.Unmarshal(data, op); err != nil {
		return fmt.Errorf("decode %s operation: %w", env.Type, err)
	}
	o.Op = op
	return nil
}

// MarshalJSON re-emits the operation. Known operations are re-serialized from
// their typed form with the type tag injected; unknown operations are echoed
// byte-for-byte.
func (o Operation) MarshalJSON() ([]byte, error) {
	if o.Op == nil {
		if len(o.Raw) == 0 {
			return nil, fmt.Errorf("operation %q has neither typed form nor raw JSON", o.Type)
		}
		return o.Raw, nil
	}

	body, err := json.Marshal(o.Op)
	if err != nil {
		return nil, fmt.Errorf("encode %s operation: %w", o.Type, err)
	}
	// Inject the type discriminant without disturbing the body fields.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s operation: %w", o.Type, err)
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", o.Op.opType()))
	return json.Marshal(fields)
}
