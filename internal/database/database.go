package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store holds the repository methods. It is bound either to the database
// itself or to an open transaction.
type Store struct {
	q querier
}

// DB wraps a SQLite database connection.
type DB struct {
	*Store
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{Store: &Store{q: conn}, conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// InTx runs fn against a Store bound to a new transaction and commits if fn
// succeeds.
func (db *DB) InTx(ctx context.Context, fn func(*Store) error) error {
	return db.withTx(ctx, true, fn)
}

// InRollbackTx runs fn inside a transaction that is always rolled back.
// Dry runs use it to execute the real code path without persisting.
func (db *DB) InRollbackTx(ctx context.Context, fn func(*Store) error) error {
	return db.withTx(ctx, false, fn)
}

// Tx picks InRollbackTx when dryRun is set and InTx otherwise.
func (db *DB) Tx(ctx context.Context, dryRun bool, fn func(*Store) error) error {
	return db.withTx(ctx, !dryRun, fn)
}

func (db *DB) withTx(ctx context.Context, commit bool, fn func(*Store) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
