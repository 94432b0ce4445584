package resolver

import "fmt"

// StaticStore is an in-memory QueryStore, FileStore, and SchemaStore. It
// backs offline compilation (no live connection to introspect) and tests.
type StaticStore struct {
	Queries map[string]*StoredQuery
	Files   map[string]*FileTable
	Tables  map[string][]ColumnInfo
}

// NewStaticStore creates an empty store.
func NewStaticStore() *StaticStore {
	return &StaticStore{
		Queries: map[string]*StoredQuery{},
		Files:   map[string]*FileTable{},
		Tables:  map[string][]ColumnInfo{},
	}
}

// StoredQuery implements QueryStore.
func (s *StaticStore) StoredQuery(name string) (*StoredQuery, error) {
	q, ok := s.Queries[name]
	if !ok {
		return nil, fmt.Errorf("no stored query named %q", name)
	}
	return q, nil
}

// FileTable implements FileStore.
func (s *StaticStore) FileTable(name string) (*FileTable, error) {
	f, ok := s.Files[name]
	if !ok {
		return nil, fmt.Errorf("no uploaded file named %q", name)
	}
	return f, nil
}

// Columns implements SchemaStore. Unknown tables resolve with an empty
// schema rather than an error: offline compilation cannot introspect the
// backend, and an empty column set compiles to a select-all.
func (s *StaticStore) Columns(table string) ([]ColumnInfo, error) {
	return s.Tables[table], nil
}
