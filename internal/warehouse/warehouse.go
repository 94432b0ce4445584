// Package warehouse is the embedded analytical engine: a process-wide
// cache of SQLite-backed stores, one file per data source, holding local
// copies of remote tables so pipeline queries can run without touching
// the remote backend on every execution.
//
// Uses SQLite with WAL mode for concurrent read access. Connections are
// cached per source name and invalidated when the source's credential
// fingerprint changes, since a credential change may point the same name
// at entirely different data.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// metaSchema tracks which remote tables have been imported locally.
const metaSchema = `
CREATE TABLE IF NOT EXISTS warehouse_tables (
	name      TEXT PRIMARY KEY,
	synced_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// Warehouse owns the per-process store cache. Safe for concurrent use.
type Warehouse struct {
	Dir string
	Log *slog.Logger

	mu    sync.Mutex
	conns map[string]*store
}

type store struct {
	db          *sql.DB
	fingerprint string
}

// New creates a Warehouse rooted at dir. The directory is created on
// first open, not here.
func New(dir string) *Warehouse {
	return &Warehouse{Dir: dir, Log: slog.Default(), conns: map[string]*store{}}
}

// Open returns the local store for a data source, creating the backing
// file on first access. A changed fingerprint discards the existing file
// and starts fresh: imported rows from the old credentials must not leak
// into queries under the new ones.
func (w *Warehouse) Open(source, fingerprint string) (*sql.DB, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.conns[source]; ok {
		if s.fingerprint == fingerprint {
			return s.db, nil
		}
		s.db.Close()
		delete(w.conns, source)
		if err := os.Remove(w.path(source)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("discard stale store for %s: %w", source, err)
		}
		w.logger().Info("warehouse store invalidated", "source", source)
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create warehouse dir: %w", err)
	}
	db, err := openStore(w.path(source))
	if err != nil {
		return nil, err
	}
	w.conns[source] = &store{db: db, fingerprint: fingerprint}
	return db, nil
}

// Close releases every cached store so other processes can open the
// files. Safe to call more than once.
func (w *Warehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var first error
	for name, s := range w.conns {
		if err := s.db.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.conns, name)
	}
	return first
}

func (w *Warehouse) path(source string) string {
	return filepath.Join(w.Dir, source+".db")
}

func (w *Warehouse) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

// openStore opens or creates one SQLite file with the required pragmas.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// SQLite only supports one writer at a time, so the pool is capped at a
// single connection to avoid SQLITE_BUSY during imports.
func openStore(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(metaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Import copies one remote table into the local store. The copy happens
// on first access or when sync is forced; otherwise the existing local
// rows are kept as-is.
func (w *Warehouse) Import(ctx context.Context, local *sql.DB, remote *sql.DB, table string, force bool) error {
	if !force {
		var name string
		err := local.QueryRowContext(ctx,
			"SELECT name FROM warehouse_tables WHERE name = ?", table).Scan(&name)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check table %s: %w", table, err)
		}
	}

	rows, err := remote.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return fmt.Errorf("read remote table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read remote table %s: %w", table, err)
	}
	if err := copyRows(ctx, local, table, cols, rows); err != nil {
		return err
	}

	_, err = local.ExecContext(ctx, `
		INSERT INTO warehouse_tables (name, synced_at) VALUES (?, datetime('now'))
		ON CONFLICT(name) DO UPDATE SET synced_at = datetime('now')`, table)
	if err != nil {
		return fmt.Errorf("record import of %s: %w", table, err)
	}
	w.logger().Info("table imported", "table", table, "columns", len(cols))
	return nil
}

// SyncMany re-imports a batch of tables, isolating failures per table so
// one broken table never blocks the rest. The returned map holds the
// error for each table that failed; an empty map means full success.
func (w *Warehouse) SyncMany(ctx context.Context, local *sql.DB, remote *sql.DB, tables []string) map[string]error {
	failed := map[string]error{}
	for _, table := range tables {
		if err := w.Import(ctx, local, remote, table, true); err != nil {
			w.logger().Error("table sync failed", "table", table, "cause", err)
			failed[table] = err
		}
	}
	return failed
}

// copyRows replaces the local table's contents with the remote rows,
// inside one transaction so readers never see a half-imported table.
func copyRows(ctx context.Context, local *sql.DB, table string, cols []string, rows *sql.Rows) error {
	tx, err := local.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import of %s: %w", table, err)
	}
	defer tx.Rollback()

	quoted := make([]string, len(cols))
	holes := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		holes[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("reset table %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(holes, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", table, err)
	}
	defer stmt.Close()

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan remote row from %s: %w", table, err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read remote table %s: %w", table, err)
	}
	return tx.Commit()
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
