package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestLoadCatalog(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"sources.cue": `package catalog

source: crm: {
	kind:     "mysql"
	host:     "db.internal"
	port:     3306
	database: "crm"
	username: "app"
	password: "s3cret"
}

source: scratch: {
	kind: "sqlite"
	file: "/var/lib/quarry/scratch.db"
}
`,
		"links.cue": `package catalog

link: [{
	left_table:   "ToDo"
	right_table:  "Owner"
	left_column:  "owner_id"
	right_column: "id"
	cardinality:  "N:1"
}]
`,
	})

	cat, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, cat.Sources, 2)

	crm, err := cat.Get("crm")
	require.NoError(t, err)
	assert.Equal(t, "crm", crm.Name)
	assert.Equal(t, "mysql", crm.Kind)
	assert.Equal(t, "db.internal", crm.Host)
	assert.Equal(t, 3306, crm.Port)

	scratch, err := cat.Get("scratch")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", scratch.Kind)
	assert.Equal(t, "/var/lib/quarry/scratch.db", scratch.File)

	links := cat.Links.All()
	require.Len(t, links, 1)
	assert.Equal(t, "ToDo", links[0].LeftTable)
	assert.Equal(t, "N:1", links[0].Cardinality)
}

func TestLoadCatalogMissingKind(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"sources.cue": `package catalog

source: broken: {
	host: "db.internal"
}
`,
	})

	_, err := Load(dir)
	require.Error(t, err)
	var cerr *CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "INVALID_SOURCE", cerr.Code)
	assert.Contains(t, cerr.Message, "broken")
}

func TestLoadCatalogMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	var cerr *CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "NOT_FOUND", cerr.Code)
}

func TestGetUnknownSource(t *testing.T) {
	cat := &Catalog{Sources: map[string]*Source{}, Links: &Links{}}
	_, err := cat.Get("ghost")
	require.Error(t, err)
	var cerr *CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "UNKNOWN_SOURCE", cerr.Code)
}
