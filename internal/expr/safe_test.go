package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextPrecedence(t *testing.T) {
	e, err := ParseText("a + b * 2")
	require.NoError(t, err)

	add, ok := e.(Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Operator)
	assert.Equal(t, Column{Column: "a"}, add.Left)

	mul, ok := add.Right.(Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)
	assert.Equal(t, Column{Column: "b"}, mul.Left)
	assert.Equal(t, Literal{Kind: KindNumber, Value: float64(2)}, mul.Right)
}

func TestParseTextLogical(t *testing.T) {
	e, err := ParseText(`status == "Open" && priority > 3 || archived == "no"`)
	require.NoError(t, err)

	or, ok := e.(Binary)
	require.True(t, ok)
	assert.Equal(t, "||", or.Operator)

	and, ok := or.Left.(Binary)
	require.True(t, ok)
	assert.Equal(t, "&&", and.Operator)

	eq, ok := and.Left.(Binary)
	require.True(t, ok)
	assert.Equal(t, "=", eq.Operator)
	assert.Equal(t, Literal{Kind: KindString, Value: "Open"}, eq.Right)
}

func TestParseTextQualifiedColumn(t *testing.T) {
	e, err := ParseText("ToDo.created_at >= other")
	require.NoError(t, err)

	cmp, ok := e.(Binary)
	require.True(t, ok)
	assert.Equal(t, ">=", cmp.Operator)
	assert.Equal(t, Column{Table: "ToDo", Column: "created_at"}, cmp.Left)
	assert.Equal(t, Column{Column: "other"}, cmp.Right)
}

func TestParseTextCall(t *testing.T) {
	e, err := ParseText(`concat(upper(name), "-", id)`)
	require.NoError(t, err)

	outer, ok := e.(Call)
	require.True(t, ok)
	assert.Equal(t, "concat", outer.Function)
	require.Len(t, outer.Arguments, 3)

	inner, ok := outer.Arguments[0].(Call)
	require.True(t, ok)
	assert.Equal(t, "upper", inner.Function)
	assert.Equal(t, Column{Column: "name"}, inner.Arguments[0])
	assert.Equal(t, Literal{Kind: KindString, Value: "-"}, outer.Arguments[1])
}

func TestParseTextUnaryMinus(t *testing.T) {
	e, err := ParseText("-amount")
	require.NoError(t, err)

	mul, ok := e.(Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)
	assert.Equal(t, Literal{Kind: KindNumber, Value: float64(-1)}, mul.Left)
	assert.Equal(t, Column{Column: "amount"}, mul.Right)
}

func TestParseTextParens(t *testing.T) {
	e, err := ParseText("(a + b) * 2")
	require.NoError(t, err)

	mul, ok := e.(Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)

	add, ok := mul.Left.(Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Operator)
}

func TestParseTextErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"unterminated string", `status == "Open`},
		{"dangling operator", "a +"},
		{"unbalanced paren", "(a + b"},
		{"empty input", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseText(tc.in)
			assert.Error(t, err)
		})
	}
}
