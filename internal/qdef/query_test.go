package qdef

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyDefinition(t *testing.T) {
	doc := `{
		"name": "QRY-0001",
		"title": "Open ToDos",
		"data_source": "app",
		"json": {
			"tables": [
				{"table": "ToDo", "label": "todo"},
				{"table": "User", "label": "owner", "join": {
					"type": "left",
					"with": {"name": "User", "label": "owner"},
					"condition": {"left_column": "owner_id", "right_column": "id"}
				}}
			],
			"columns": [
				{"table": "ToDo", "column": "status", "label": "Status", "aggregation": "Group By"},
				{"table": "ToDo", "column": "name", "label": "Count", "aggregation": "count"}
			],
			"limit": 50
		}
	}`

	q, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "QRY-0001", q.Name)
	assert.Equal(t, "app", q.DataSource)
	assert.False(t, q.IsNative)
	assert.False(t, q.IsPipeline())
	require.NotNil(t, q.Legacy)
	require.Len(t, q.Legacy.Tables, 2)
	assert.Equal(t, "left", q.Legacy.Tables[1].Join.Type)
	assert.Equal(t, "owner_id", q.Legacy.Tables[1].Join.Condition.LeftColumn)

	require.Len(t, q.Legacy.Columns, 2)
	assert.True(t, q.Legacy.Columns[0].IsGroupBy())
	assert.False(t, q.Legacy.Columns[0].IsAggregate())
	assert.True(t, q.Legacy.Columns[1].IsAggregate())
	assert.Equal(t, 50, q.Legacy.Limit)
}

func TestParseRejectsMissingDataSource(t *testing.T) {
	_, err := Parse([]byte(`{"name": "q", "json": {"tables": []}}`))
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))
	assert.Contains(t, err.Error(), "data source")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"name": `))
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))
}

func TestLegacyRoundTrip(t *testing.T) {
	doc := `{
		"name": "QRY-0002",
		"data_source": "app",
		"json": {
			"tables": [{"table": "Invoice"}],
			"columns": [{"table": "Invoice", "column": "total", "label": "Total", "aggregation": "sum"}],
			"filters": {"type": "LogicalExpression", "operator": "&&", "conditions": []},
			"limit": 25
		}
	}`

	q, err := Parse([]byte(doc))
	require.NoError(t, err)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	q2, err := Parse(out)
	require.NoError(t, err)

	assert.Equal(t, q.Name, q2.Name)
	require.NotNil(t, q2.Legacy)
	assert.Equal(t, q.Legacy.Tables, q2.Legacy.Tables)
	assert.Equal(t, q.Legacy.Columns, q2.Legacy.Columns)
	assert.Equal(t, q.Legacy.Limit, q2.Legacy.Limit)
	assert.JSONEq(t, string(q.Legacy.Filters), string(q2.Legacy.Filters))
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name     string
		declared int
		cap      int
		want     int
	}{
		{"absent limit falls back to default", 0, MaxInteractiveLimit, DefaultLimit},
		{"negative limit falls back to default", -5, MaxInteractiveLimit, DefaultLimit},
		{"declared below cap is kept", 42, MaxInteractiveLimit, 42},
		{"declared at cap is kept", 500, MaxInteractiveLimit, 500},
		{"declared above cap is clamped", 9999, MaxInteractiveLimit, 500},
		{"zero cap means interactive cap", 9999, 0, MaxInteractiveLimit},
		{"export cap clamps higher", 9999, MaxExportLimit, MaxExportLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveLimit(tt.declared, tt.cap))
		})
	}
}

func TestTableRefEffectiveKind(t *testing.T) {
	assert.Equal(t, RefTable, TableRef{Name: "ToDo"}.EffectiveKind())
	assert.Equal(t, RefQuery, TableRef{Kind: RefQuery, Name: "QRY-0001"}.EffectiveKind())
	assert.Equal(t, RefFile, TableRef{Kind: RefFile, Name: "upload.csv"}.EffectiveKind())
}

func TestQueryRefs(t *testing.T) {
	doc := `{
		"name": "QRY-0003",
		"data_source": "app",
		"operations": [
			{"type": "source", "table": {"type": "query", "name": "QRY-0001"}},
			{"type": "join", "table": {"type": "query", "name": "QRY-0002"}, "left_column": "id", "right_column": "id"},
			{"type": "join", "table": {"type": "table", "name": "User"}, "left_column": "owner", "right_column": "id"},
			{"type": "join", "table": {"type": "query", "name": "QRY-0001"}, "left_column": "id", "right_column": "ref"}
		]
	}`
	q, err := Parse([]byte(doc))
	require.NoError(t, err)

	// Query-kind references only, deduplicated, in reference order.
	assert.Equal(t, []string{"QRY-0001", "QRY-0002"}, q.QueryRefs())
}
