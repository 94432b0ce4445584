package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to a source and verifies the connection. The caller owns
// the returned pool and must close it; prefer WithConnection for
// one-shot work.
func Open(s *Source) (*sql.DB, error) {
	driver, dsn, err := s.dsn()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", s.Name, err)
	}
	return db, nil
}

// WithConnection opens a scoped connection, runs fn, and closes the pool
// on every exit path. Some backends strictly limit concurrent
// connections per credential set, so leaking one here starves every
// other query on the same source.
func WithConnection(ctx context.Context, s *Source, fn func(ctx context.Context, db *sql.DB) error) error {
	db, err := Open(s)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func (s *Source) dsn() (driver, dsn string, err error) {
	switch s.Kind {
	case "mysql", "mariadb":
		host := s.Host
		if host == "" {
			host = "localhost"
		}
		port := s.Port
		if port == 0 {
			port = 3306
		}
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			s.Username, s.Password, host, port, s.Database), nil
	case "postgres", "postgresql":
		host := s.Host
		if host == "" {
			host = "localhost"
		}
		port := s.Port
		if port == 0 {
			port = 5432
		}
		return "postgres", fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
			host, port, s.Database, s.Username, s.Password), nil
	case "sqlite", "sqlite3", "warehouse":
		file := s.File
		if file == "" {
			file = ":memory:"
		}
		return "sqlite3", file, nil
	default:
		return "", "", &CatalogError{
			Code:    "INVALID_SOURCE",
			Message: fmt.Sprintf("source %q: unsupported kind %q", s.Name, s.Kind),
		}
	}
}
