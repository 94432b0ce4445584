package cli

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/exec"
)

// sqliteCatalog writes a one-source catalog backed by a seeded SQLite file
// and returns the catalog directory.
func sqliteCatalog(t *testing.T, stmts ...string) string {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "tracker.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "seeding: %s", stmt)
	}
	require.NoError(t, db.Close())

	catDir := filepath.Join(dir, "catalog")
	require.NoError(t, os.MkdirAll(catDir, 0o755))
	body := `package catalog

source: tracker: {
	kind: "sqlite"
	file: "` + dbPath + `"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "sources.cue"), []byte(body), 0o644))
	return catDir
}

func TestRunCommandExecutesPipeline(t *testing.T) {
	catalog := sqliteCatalog(t,
		`CREATE TABLE ToDo (id INTEGER, title TEXT, status TEXT)`,
		`INSERT INTO ToDo VALUES (1, 'a', 'Open'), (2, 'b', 'Open'), (3, 'c', 'Closed')`,
	)
	path := writeQuery(t, "count.json", `{
		"name": "QRY_count",
		"data_source": "tracker",
		"operations": [
			{"type": "source", "table": {"name": "ToDo"}},
			{"type": "filter", "column": "status", "operator": "=", "value": "Open"},
			{"type": "summarize", "measures": [{"label": "total", "aggregation": "count"}]}
		]
	}`)

	out, err := runCLI(t, "run", path, "--catalog", catalog, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var res exec.Result
	require.NoError(t, json.Unmarshal(data, &res))
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 2, res.Rows[0][0])
	assert.NotEmpty(t, res.RunID)
}

func TestRunCommandNative(t *testing.T) {
	catalog := sqliteCatalog(t,
		`CREATE TABLE ToDo (id INTEGER, title TEXT, status TEXT)`,
		`INSERT INTO ToDo VALUES (1, 'a', 'Open')`,
	)
	path := writeQuery(t, "native.json", `{
		"name": "QRY_native",
		"data_source": "tracker",
		"is_native_query": true,
		"sql": "SELECT title FROM ToDo"
	}`)

	out, err := runCLI(t, "run", path, "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "rows in")
}

func TestRunCommandGatesNativeWrite(t *testing.T) {
	catalog := sqliteCatalog(t, `CREATE TABLE ToDo (id INTEGER)`)
	path := writeQuery(t, "evil.json", `{
		"name": "QRY_evil",
		"data_source": "tracker",
		"is_native_query": true,
		"sql": "DROP TABLE ToDo"
	}`)

	out, err := runCLI(t, "run", path, "--catalog", catalog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SAFETY_VIOLATION")
}

func TestSourcesCommand(t *testing.T) {
	catalog := sqliteCatalog(t)
	out, err := runCLI(t, "sources", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "tracker")
	assert.Contains(t, out, "sqlite")
}

func TestSyncCommand(t *testing.T) {
	catalog := sqliteCatalog(t,
		`CREATE TABLE customers (id INTEGER, name TEXT)`,
		`INSERT INTO customers VALUES (1, 'ann')`,
	)
	whDir := filepath.Join(t.TempDir(), "wh")

	out, err := runCLI(t, "sync", "tracker", "customers", "--catalog", catalog, "--warehouse", whDir)
	require.NoError(t, err)
	assert.Contains(t, out, "synced customers")

	// The local store now holds the copy.
	local, err := sql.Open("sqlite3", filepath.Join(whDir, "tracker.db"))
	require.NoError(t, err)
	defer local.Close()
	var n int
	require.NoError(t, local.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSyncCommandReportsFailures(t *testing.T) {
	catalog := sqliteCatalog(t, `CREATE TABLE good (id INTEGER)`)
	whDir := filepath.Join(t.TempDir(), "wh")

	out, err := runCLI(t, "sync", "tracker", "good", "missing", "--catalog", catalog, "--warehouse", whDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "synced good")
	assert.Contains(t, out, "failed missing")
}
