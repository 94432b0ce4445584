// Package expr defines the expression AST shared by filters and calculated
// columns, the JSON parser that rebuilds it, and the restricted text parser
// used for free-form calculated-column expressions.
//
// One grammar serves predicates and computed values alike: arithmetic,
// comparison, and logical operators are valid at any depth. Trees are
// immutable once parsed and rebuilt from JSON on every compile.
package expr

import "encoding/json"

// Expr is an expression tree node.
//
// This is a sealed interface - only types in this package implement it. The
// marker method keeps the variant set closed so the evaluator's type switch
// is exhaustive.
type Expr interface {
	exprNode()
}

// Column references a column scoped to a table or alias.
//
// Resolving a Column has a required side effect: the referenced table joins
// the query's active table set even if it was never explicitly listed.
// Auto-discovery is part of the evaluation contract, not an optimization.
type Column struct {
	Table  string
	Column string
}

func (Column) exprNode() {}

// LiteralKind discriminates literal values.
type LiteralKind string

const (
	KindString LiteralKind = "String"
	KindNumber LiteralKind = "Number"
)

// Literal is a scalar constant. Interpretation depends on the sibling
// operator: like-family operators wrap the value in wildcards, in/between
// operators split it into a list, and null-test operators ignore it.
type Literal struct {
	Kind  LiteralKind
	Value any
}

func (Literal) exprNode() {}

// Binary applies an operator from the dialect registry to two sub-trees.
type Binary struct {
	Operator string
	Left     Expr
	Right    Expr
}

func (Binary) exprNode() {}

// Call applies a named function or aggregation to resolved arguments.
// Aggregations take priority when a name exists in both registries.
type Call struct {
	Function  string
	Arguments []Expr
}

func (Call) exprNode() {}

// Logical combines conditions with "&&" or "||". An empty condition list is
// an unconditionally true predicate.
type Logical struct {
	Operator   string
	Conditions []Expr
}

func (Logical) exprNode() {}

// columnValue is the wire form of a Column node's value field.
type columnValue struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// MarshalJSON emits the tagged wire form, the inverse of Parse.
func Marshal(e Expr) ([]byte, error) {
	return json.Marshal(toWire(e))
}

func toWire(e Expr) map[string]any {
	switch n := e.(type) {
	case Column:
		return map[string]any{
			"type":  "Column",
			"value": columnValue{Table: n.Table, Column: n.Column},
		}
	case Literal:
		return map[string]any{"type": string(n.Kind), "value": n.Value}
	case Binary:
		return map[string]any{
			"type":     "BinaryExpression",
			"operator": n.Operator,
			"left":     toWire(n.Left),
			"right":    toWire(n.Right),
		}
	case Call:
		args := make([]any, len(n.Arguments))
		for i, a := range n.Arguments {
			args[i] = toWire(a)
		}
		return map[string]any{
			"type":      "CallExpression",
			"function":  n.Function,
			"arguments": args,
		}
	case Logical:
		conds := make([]any, len(n.Conditions))
		for i, c := range n.Conditions {
			conds[i] = toWire(c)
		}
		return map[string]any{
			"type":       "LogicalExpression",
			"operator":   n.Operator,
			"conditions": conds,
		}
	default:
		return nil
	}
}
