package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUppercasesKeywords(t *testing.T) {
	got := Format("select id from t where x = 1 limit 10")
	assert.Equal(t, "SELECT id\nFROM t\nWHERE x = 1\nLIMIT 10", got)
}

func TestFormatLeavesQuotedTextAlone(t *testing.T) {
	got := Format("select 'select from where' as label from t")
	assert.Contains(t, got, "'select from where'")
	assert.True(t, strings.HasPrefix(got, "SELECT"))
}

func TestFormatKeepsGroupByTogether(t *testing.T) {
	got := Format("select status, count(*) from t group by status order by status")
	assert.Contains(t, got, "GROUP BY status")
	assert.Contains(t, got, "ORDER BY status")
	// "BY" never starts its own line.
	for _, line := range strings.Split(got, "\n") {
		assert.False(t, strings.HasPrefix(line, "BY"), "line %q", line)
	}
}

func TestFormatIsIdempotentOnSingleLine(t *testing.T) {
	sql := "SELECT id FROM t LIMIT 5"
	once := Format(sql)
	twice := Format(once)
	assert.Equal(t, once, twice)
}
