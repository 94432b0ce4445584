package expr

import (
	"encoding/json"

	"github.com/quarrydata/quarry/internal/qdef"
)

// node is the generic wire form of an expression tree node.
type node struct {
	Type       string            `json:"type"`
	Value      json.RawMessage   `json:"value,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Left       json.RawMessage   `json:"left,omitempty"`
	Right      json.RawMessage   `json:"right,omitempty"`
	Function   string            `json:"function,omitempty"`
	Arguments  []json.RawMessage `json:"arguments,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
}

// Parse rebuilds an expression tree from its JSON wire form.
//
// Dispatch is purely on the type discriminant. An unknown type is a hard
// failure: expressions are user intent, and guessing at intent produces
// silently wrong results.
func Parse(data []byte) (Expr, error) {
	if len(data) == 0 {
		return nil, qdef.Definitionf("expression", "empty expression")
	}
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, qdef.Definitionf("expression", "malformed expression JSON: %v", err)
	}

	switch n.Type {
	case "Column":
		var v columnValue
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, qdef.Definitionf("expression", "malformed column reference: %v", err)
		}
		if v.Column == "" {
			return nil, qdef.Definitionf("expression", "column reference has no column name")
		}
		return Column{Table: v.Table, Column: v.Column}, nil

	case "String":
		var s string
		if err := json.Unmarshal(n.Value, &s); err != nil {
			return nil, qdef.Definitionf("expression", "malformed string literal: %v", err)
		}
		return Literal{Kind: KindString, Value: s}, nil

	case "Number":
		var f float64
		if err := json.Unmarshal(n.Value, &f); err != nil {
			return nil, qdef.Definitionf("expression", "malformed number literal: %v", err)
		}
		return Literal{Kind: KindNumber, Value: f}, nil

	case "BinaryExpression":
		left, err := Parse(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := Parse(n.Right)
		if err != nil {
			return nil, err
		}
		if n.Operator == "" {
			return nil, qdef.Definitionf("expression", "binary expression has no operator")
		}
		return Binary{Operator: n.Operator, Left: left, Right: right}, nil

	case "CallExpression":
		if n.Function == "" {
			return nil, qdef.Definitionf("expression", "call expression has no function name")
		}
		args := make([]Expr, 0, len(n.Arguments))
		for _, raw := range n.Arguments {
			a, err := Parse(raw)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return Call{Function: n.Function, Arguments: args}, nil

	case "LogicalExpression":
		op := n.Operator
		if op != "&&" && op != "||" {
			return nil, qdef.Definitionf("expression", "logical operator must be && or ||, got %q", op)
		}
		conds := make([]Expr, 0, len(n.Conditions))
		for _, raw := range n.Conditions {
			c, err := Parse(raw)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		return Logical{Operator: op, Conditions: conds}, nil

	default:
		return nil, qdef.Definitionf("expression", "invalid expression type %q", n.Type)
	}
}
