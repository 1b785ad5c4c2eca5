package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"     // registers the "sqlite3" database/sql driver

	"github.com/cleared-dev/grandlivre/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrUniqueViolation is returned when an insert collides with a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrSerialization is returned when the database aborted a transaction
	// because of a concurrent writer; the transaction can be retried.
	ErrSerialization = errors.New("serialization failure")
)

// DB is the ledger's relational store.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database identified by driver and dsn.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		db, err := sql.Open("sqlite3", SQLiteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		// SQLite allows a single writer; one connection serializes every transaction.
		db.SetMaxOpenConns(1)
		return New(db, SQLite), nil
	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}
		db.SetConnMaxIdleTime(5 * time.Minute)
		return New(db, Postgres), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// New wraps an already opened database handle.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// SQLiteDSN adds the connection parameters the ledger relies on to a SQLite
// file path: foreign keys, a busy timeout, and BEGIN IMMEDIATE transactions
// so that the write lock is taken up front.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

// Dialect returns the SQL dialect in use.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the ledger schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range d.dialect.schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Driver errors are classified into
// ErrUniqueViolation and ErrSerialization where possible.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return d.dialect.classify(fmt.Errorf("beginning transaction: %w", err))
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		return d.dialect.classify(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return d.dialect.classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// Tx is an open transaction. All ledger reads and writes go through it.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("loading %s: %w", what, err)
}
