package qdef

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationDecodeKnownTypes(t *testing.T) {
	doc := `{
		"name": "QRY-0010",
		"data_source": "app",
		"operations": [
			{"type": "source", "table": {"type": "table", "name": "ToDo"}},
			{"type": "filter", "column": "status", "operator": "=", "value": "Open"},
			{"type": "filter_group", "logical_operator": "||", "filters": [
				{"column": "priority", "operator": "=", "value": "High"},
				{"column": "priority", "operator": "=", "value": "Urgent"}
			]},
			{"type": "select", "columns": ["name", "status"]},
			{"type": "rename", "column": "name", "new_name": "title"},
			{"type": "remove", "columns": ["status"]},
			{"type": "mutate", "label": "age_days", "data_type": "Integer", "expression": "date_diff('day', creation, today())"},
			{"type": "cast", "column": "age_days", "data_type": "Decimal"},
			{"type": "summarize", "measures": [{"label": "Count", "aggregation": "count"}], "dimensions": [{"column": "status"}]},
			{"type": "order_by", "column": "Count", "direction": "desc"},
			{"type": "limit", "limit": 20},
			{"type": "pivot_wider", "rows": ["owner"], "columns": ["status"], "values": [{"column": "Count", "aggregation": "sum"}]}
		]
	}`

	q, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.True(t, q.IsPipeline())
	require.Len(t, q.Operations, 12)

	src, ok := q.Operations[0].Op.(*Source)
	require.True(t, ok)
	assert.Equal(t, "ToDo", src.Table.Name)

	f, ok := q.Operations[1].Op.(*Filter)
	require.True(t, ok)
	assert.Equal(t, "status", f.Column)
	assert.Equal(t, "=", f.Operator)

	fg, ok := q.Operations[2].Op.(*FilterGroup)
	require.True(t, ok)
	assert.Equal(t, "||", fg.LogicalOperator)
	assert.Len(t, fg.Filters, 2)

	sum, ok := q.Operations[8].Op.(*Summarize)
	require.True(t, ok)
	require.Len(t, sum.Measures, 1)
	assert.Equal(t, "count", sum.Measures[0].Aggregation)

	pv, ok := q.Operations[11].Op.(*PivotWider)
	require.True(t, ok)
	assert.Equal(t, []string{"owner"}, pv.Rows)
	assert.Equal(t, []string{"status"}, pv.Columns)
}

func TestOperationUnknownTypeSurvivesRoundTrip(t *testing.T) {
	raw := `{"type": "window_rank", "partition_by": ["status"], "order_by": "total"}`
	doc := `{
		"name": "QRY-0011",
		"data_source": "app",
		"operations": [
			{"type": "source", "table": {"name": "ToDo"}},
			` + raw + `
		]
	}`

	q, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, q.Operations, 2)

	// Unknown type decodes lenient: no typed Op, raw preserved.
	unknown := q.Operations[1]
	assert.Equal(t, "window_rank", unknown.Type)
	assert.Nil(t, unknown.Op)
	assert.JSONEq(t, raw, string(unknown.Raw))

	// Marshal echoes the raw bytes so newer documents survive older binaries.
	out, err := json.Marshal(q)
	require.NoError(t, err)
	q2, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, q2.Operations, 2)
	assert.JSONEq(t, raw, string(q2.Operations[1].Raw))
}

func TestOperationKnownTypeRoundTrip(t *testing.T) {
	doc := `{
		"name": "QRY-0012",
		"data_source": "app",
		"operations": [
			{"type": "source", "table": {"type": "table", "name": "ToDo"}},
			{"type": "summarize",
				"measures": [{"label": "Open", "aggregation": "count_if", "conditions": [{"column": "status", "operator": "=", "value": "Open"}]}],
				"dimensions": [{"column": "creation", "granularity": "Month"}]}
		]
	}`

	q, err := Parse([]byte(doc))
	require.NoError(t, err)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	q2, err := Parse(out)
	require.NoError(t, err)

	sum1 := q.Operations[1].Op.(*Summarize)
	sum2, ok := q2.Operations[1].Op.(*Summarize)
	require.True(t, ok)
	assert.Equal(t, sum1.Dimensions, sum2.Dimensions)
	assert.Equal(t, sum1.Measures[0].Label, sum2.Measures[0].Label)
	assert.JSONEq(t, string(sum1.Measures[0].Conditions), string(sum2.Measures[0].Conditions))
}

func TestOperationMarshalWithoutRawOrOpFails(t *testing.T) {
	_, err := json.Marshal(Operation{Type: "ghost"})
	require.Error(t, err)
}
