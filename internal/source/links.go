package source

// TableLink is a directed join edge between two physical tables. Edges
// are stored once: the reverse of an existing edge is the same
// relationship and is not re-added.
type TableLink struct {
	LeftTable   string `json:"left_table"`
	RightTable  string `json:"right_table"`
	LeftColumn  string `json:"left_column"`
	RightColumn string `json:"right_column"`

	// Cardinality is "1:1", "1:N", or "N:N"; informational only.
	Cardinality string `json:"cardinality,omitempty"`
}

// reverse returns the same relationship walked the other way.
func (l TableLink) reverse() TableLink {
	return TableLink{
		LeftTable:   l.RightTable,
		RightTable:  l.LeftTable,
		LeftColumn:  l.RightColumn,
		RightColumn: l.LeftColumn,
		Cardinality: l.Cardinality,
	}
}

func (l TableLink) sameEdge(o TableLink) bool {
	return l.LeftTable == o.LeftTable && l.RightTable == o.RightTable &&
		l.LeftColumn == o.LeftColumn && l.RightColumn == o.RightColumn
}

// Links is a deduplicated set of table links.
type Links struct {
	edges []TableLink
}

// Add inserts a link unless it, or its reverse, is already present.
// Reports whether the link was added.
func (ls *Links) Add(l TableLink) bool {
	rev := l.reverse()
	for _, e := range ls.edges {
		if e.sameEdge(l) || e.sameEdge(rev) {
			return false
		}
	}
	ls.edges = append(ls.edges, l)
	return true
}

// All returns every stored link in insertion order.
func (ls *Links) All() []TableLink {
	out := make([]TableLink, len(ls.edges))
	copy(out, ls.edges)
	return out
}

// Suggest returns the known join path between two tables, in either
// direction, oriented so the left side matches leftTable.
func (ls *Links) Suggest(leftTable, rightTable string) (TableLink, bool) {
	for _, e := range ls.edges {
		if e.LeftTable == leftTable && e.RightTable == rightTable {
			return e, true
		}
		if e.RightTable == leftTable && e.LeftTable == rightTable {
			return e.reverse(), true
		}
	}
	return TableLink{}, false
}

// Validate checks a declared join condition against the stored links.
// Tables with no stored link are accepted: the catalog is advisory and
// cannot know every legitimate join. A declared condition that
// contradicts a stored link for the same table pair is rejected.
func (ls *Links) Validate(leftTable, rightTable, leftColumn, rightColumn string) bool {
	known, ok := ls.Suggest(leftTable, rightTable)
	if !ok {
		return true
	}
	return known.LeftColumn == leftColumn && known.RightColumn == rightColumn
}
