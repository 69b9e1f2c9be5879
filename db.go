package main

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

//go:embed sql/schema.sql
var schemaSQL string

// store talks to the managed backend's tables. Production points it at the
// backend's Postgres; local runs and tests use SQLite with the embedded schema.
type store struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
}

func openStore(driver, dsn string) (*store, error) {
	switch driver {
	case driverPostgres:
	case driverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reach %s: %w", driver, err)
	}
	return newStore(db, driver), nil
}

func newStore(db *sql.DB, driver string) *store {
	format := sq.Dollar
	if driver == driverSQLite {
		format = sq.Question
	}
	return &store{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// sqliteDSN enables foreign keys and a busy timeout unless the caller set pragmas.
// Transactions take the write lock at BEGIN so read-then-write bodies wait on
// busy_timeout instead of failing with a stale snapshot.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func (s *store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded schema. Every statement is idempotent.
func (s *store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// forUpdate adds a row lock where the dialect has one. SQLite serialises writers anyway.
func (s *store) forUpdate(b sq.SelectBuilder) sq.SelectBuilder {
	if s.driver == driverPostgres {
		return b.Suffix("FOR UPDATE")
	}
	return b
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps handler bodies tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
