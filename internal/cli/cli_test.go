package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQuery(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// runCLI executes the root command with captured output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const legacyDoc = `{
	"name": "QRY_open_todos",
	"data_source": "tracker",
	"json": {
		"tables": [{"table": "ToDo"}],
		"columns": [
			{"table": "ToDo", "column": "id", "label": "ID"},
			{"table": "ToDo", "column": "title", "label": "Title"}
		],
		"limit": 25
	}
}`

func TestCompileCommand(t *testing.T) {
	path := writeQuery(t, "query.json", legacyDoc)
	out, err := runCLI(t, "compile", path, "--backend", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "LIMIT 25")
}

func TestCompileCommandJSON(t *testing.T) {
	path := writeQuery(t, "query.json", legacyDoc)
	out, err := runCLI(t, "compile", path, "--backend", "sqlite", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var compiled CompileOutput
	require.NoError(t, json.Unmarshal(data, &compiled))
	assert.Contains(t, compiled.SQL, "SELECT")
	assert.Equal(t, 25, compiled.Limit)
	require.Len(t, compiled.Columns, 2)
	assert.Equal(t, "ID", compiled.Columns[0].Label)
}

func TestCompileCommandRejectsNative(t *testing.T) {
	path := writeQuery(t, "native.json", `{
		"name": "QRY_native",
		"data_source": "tracker",
		"is_native_query": true,
		"sql": "SELECT 1"
	}`)
	out, err := runCLI(t, "compile", path, "--backend", "sqlite")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "native SQL")
}

func TestCompileCommandMissingFile(t *testing.T) {
	_, err := runCLI(t, "compile", filepath.Join(t.TempDir(), "absent.json"), "--backend", "sqlite")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommandAcceptsPipeline(t *testing.T) {
	path := writeQuery(t, "pipe.json", `{
		"name": "QRY_pipe",
		"data_source": "tracker",
		"operations": [
			{"type": "source", "table": {"name": "ToDo"}},
			{"type": "limit", "limit": 5}
		]
	}`)
	out, err := runCLI(t, "validate", path, "--backend", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateCommandGatesNativeSQL(t *testing.T) {
	path := writeQuery(t, "native.json", `{
		"name": "QRY_drop",
		"data_source": "tracker",
		"is_native_query": true,
		"sql": "DROP TABLE users"
	}`)
	out, err := runCLI(t, "validate", path, "--backend", "sqlite")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SAFETY_VIOLATION")
}

func TestValidateCommandReportsDefinitionError(t *testing.T) {
	path := writeQuery(t, "broken.json", `{
		"name": "QRY_broken",
		"data_source": "tracker",
		"operations": [
			{"type": "filter", "column": "x", "operator": "=", "value": 1}
		]
	}`)
	out, err := runCLI(t, "validate", path, "--backend", "sqlite", "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	path := writeQuery(t, "query.json", legacyDoc)
	_, err := runCLI(t, "compile", path, "--backend", "sqlite", "--format", "xml")
	require.Error(t, err)
}

func TestCompileResolvesStoredQueryReferences(t *testing.T) {
	queries := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(queries, "QRY_base.json"), []byte(`{
		"name": "QRY_base",
		"data_source": "tracker",
		"is_native_query": true,
		"sql": "SELECT id, title FROM ToDo"
	}`), 0o644))

	path := writeQuery(t, "outer.json", `{
		"name": "QRY_outer",
		"data_source": "tracker",
		"operations": [
			{"type": "source", "table": {"type": "query", "name": "QRY_base"}},
			{"type": "limit", "limit": 3}
		]
	}`)

	out, err := runCLI(t, "compile", path, "--backend", "sqlite", "--queries", queries)
	require.NoError(t, err)
	assert.Contains(t, out, "WITH")
	assert.Contains(t, out, "QRY_base")
	assert.Contains(t, out, "LIMIT 3")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError}))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
