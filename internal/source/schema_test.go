package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/resolver"
	"github.com/quarrydata/quarry/internal/testutil"
)

func TestDBSchemaColumns(t *testing.T) {
	db := testutil.OpenSQLite(t)
	testutil.Seed(t, db, `CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer TEXT,
		total REAL,
		placed_at DATETIME
	)`)

	s := &DBSchema{DB: db, Kind: "sqlite"}
	cols, err := s.Columns("orders")
	require.NoError(t, err)
	assert.Equal(t, []resolver.ColumnInfo{
		{Name: "id", Type: "Integer"},
		{Name: "customer", Type: "String"},
		{Name: "total", Type: "Decimal"},
		{Name: "placed_at", Type: "Datetime"},
	}, cols)
}

func TestDBSchemaUnknownTable(t *testing.T) {
	db := testutil.OpenSQLite(t)
	s := &DBSchema{DB: db, Kind: "sqlite"}
	_, err := s.Columns("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestSemanticType(t *testing.T) {
	cases := []struct {
		dbType string
		want   string
	}{
		{"INTEGER", "Integer"},
		{"bigint", "Integer"},
		{"VARCHAR(255)", "String"},
		{"character varying", "String"},
		{"NUMERIC(10,2)", "Decimal"},
		{"double precision", "Decimal"},
		{"DATE", "Date"},
		{"timestamp with time zone", "Datetime"},
		{"TIME", "Time"},
		{"jsonb", "String"},
		{"geometry", ""},
	}
	for _, tc := range cases {
		t.Run(tc.dbType, func(t *testing.T) {
			assert.Equal(t, tc.want, semanticType(tc.dbType))
		})
	}
}

func TestSourceDSN(t *testing.T) {
	my := &Source{Name: "crm", Kind: "mysql", Host: "db.internal", Port: 3307,
		Database: "crm", Username: "app", Password: "s3cret"}
	driver, dsn, err := my.dsn()
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "app:s3cret@tcp(db.internal:3307)/crm?parseTime=true", dsn)

	pg := &Source{Name: "dw", Kind: "postgres", Database: "dw", Username: "app", Password: "pw"}
	driver, dsn, err = pg.dsn()
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "sslmode=disable")

	lite := &Source{Name: "local", Kind: "sqlite"}
	driver, dsn, err = lite.dsn()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", driver)
	assert.Equal(t, ":memory:", dsn)

	_, _, err = (&Source{Name: "bad", Kind: "oracle"}).dsn()
	require.Error(t, err)
	var cerr *CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "INVALID_SOURCE", cerr.Code)
}

func TestFingerprintChangesWithCredentials(t *testing.T) {
	a := &Source{Kind: "mysql", Host: "h", Port: 3306, Database: "d", Username: "u", Password: "p"}
	b := &Source{Kind: "mysql", Host: "h", Port: 3306, Database: "d", Username: "u", Password: "p2"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Fingerprint(), (&Source{Kind: "mysql", Host: "h", Port: 3306, Database: "d", Username: "u", Password: "p"}).Fingerprint())
}
