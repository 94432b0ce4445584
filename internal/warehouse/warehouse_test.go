package warehouse

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/testutil"
)

func newWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	w := New(filepath.Join(t.TempDir(), "warehouse"))
	t.Cleanup(func() { w.Close() })
	return w
}

func TestOpenCreatesStore(t *testing.T) {
	w := newWarehouse(t)
	db, err := w.Open("crm", "fp1")
	require.NoError(t, err)

	// Meta schema is in place.
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM warehouse_tables").Scan(&n))
	assert.Equal(t, 0, n)

	// Same fingerprint reuses the connection.
	again, err := w.Open("crm", "fp1")
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestOpenInvalidatesOnFingerprintChange(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()

	db, err := w.Open("crm", "fp1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE leftovers (x INTEGER)")
	require.NoError(t, err)

	// New credentials may point the same source name at different data, so
	// the old file is discarded wholesale.
	fresh, err := w.Open("crm", "fp2")
	require.NoError(t, err)
	assert.NotSame(t, db, fresh)

	var n int
	err = fresh.QueryRow("SELECT COUNT(*) FROM leftovers").Scan(&n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestImportCopiesOnce(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()

	remote := testutil.OpenSQLite(t)
	testutil.Seed(t, remote,
		`CREATE TABLE customers (id INTEGER, name TEXT)`,
		`INSERT INTO customers VALUES (1, 'ann'), (2, 'bob')`,
	)

	local, err := w.Open("crm", "fp1")
	require.NoError(t, err)
	require.NoError(t, w.Import(ctx, local, remote, "customers", false))

	var n int
	require.NoError(t, local.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n))
	assert.Equal(t, 2, n)

	// A second non-forced import leaves the local copy untouched.
	testutil.Seed(t, remote, `INSERT INTO customers VALUES (3, 'cyd')`)
	require.NoError(t, w.Import(ctx, local, remote, "customers", false))
	require.NoError(t, local.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n))
	assert.Equal(t, 2, n)

	// A forced import replaces it.
	require.NoError(t, w.Import(ctx, local, remote, "customers", true))
	require.NoError(t, local.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSyncManyIsolatesFailures(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()

	remote := testutil.OpenSQLite(t)
	testutil.Seed(t, remote,
		`CREATE TABLE good (id INTEGER)`,
		`INSERT INTO good VALUES (1)`,
	)

	local, err := w.Open("crm", "fp1")
	require.NoError(t, err)

	failed := w.SyncMany(ctx, local, remote, []string{"good", "missing"})
	require.Len(t, failed, 1)
	assert.Contains(t, failed["missing"].Error(), "missing")

	// The good table still synced.
	var n int
	require.NoError(t, local.QueryRow(`SELECT COUNT(*) FROM good`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestImportRecordsSyncTime(t *testing.T) {
	w := newWarehouse(t)
	ctx := context.Background()

	remote := testutil.OpenSQLite(t)
	testutil.Seed(t, remote, `CREATE TABLE t (x INTEGER)`)

	local, err := w.Open("crm", "fp1")
	require.NoError(t, err)
	require.NoError(t, w.Import(ctx, local, remote, "t", false))

	var name, syncedAt string
	require.NoError(t, local.QueryRow(
		`SELECT name, synced_at FROM warehouse_tables WHERE name = 't'`).Scan(&name, &syncedAt))
	assert.Equal(t, "t", name)
	assert.NotEmpty(t, syncedAt)
}
