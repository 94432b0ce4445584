package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksAddDedupesReverse(t *testing.T) {
	ls := &Links{}
	edge := TableLink{LeftTable: "ToDo", RightTable: "Owner", LeftColumn: "owner_id", RightColumn: "id"}

	assert.True(t, ls.Add(edge))
	assert.False(t, ls.Add(edge))
	assert.False(t, ls.Add(edge.reverse()))
	assert.Len(t, ls.All(), 1)

	// A different column pair is a different relationship.
	assert.True(t, ls.Add(TableLink{LeftTable: "ToDo", RightTable: "Owner", LeftColumn: "reviewer_id", RightColumn: "id"}))
}

func TestLinksSuggestOrients(t *testing.T) {
	ls := &Links{}
	ls.Add(TableLink{LeftTable: "ToDo", RightTable: "Owner", LeftColumn: "owner_id", RightColumn: "id"})

	got, ok := ls.Suggest("ToDo", "Owner")
	require.True(t, ok)
	assert.Equal(t, "owner_id", got.LeftColumn)

	// Asking the other way round flips the edge.
	got, ok = ls.Suggest("Owner", "ToDo")
	require.True(t, ok)
	assert.Equal(t, "id", got.LeftColumn)
	assert.Equal(t, "owner_id", got.RightColumn)

	_, ok = ls.Suggest("ToDo", "Unrelated")
	assert.False(t, ok)
}

func TestLinksValidate(t *testing.T) {
	ls := &Links{}
	ls.Add(TableLink{LeftTable: "ToDo", RightTable: "Owner", LeftColumn: "owner_id", RightColumn: "id"})

	// Matching the stored edge passes.
	assert.True(t, ls.Validate("ToDo", "Owner", "owner_id", "id"))
	// Contradicting it fails.
	assert.False(t, ls.Validate("ToDo", "Owner", "title", "id"))
	// Unknown pairs are advisory-accepted.
	assert.True(t, ls.Validate("ToDo", "Unknown", "x", "y"))
}
