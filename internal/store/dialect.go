package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the differences between the supported SQL databases.
// Queries are written with "?" placeholders and rebound per dialect.
type Dialect struct {
	Name        string
	numbered    bool   // "$1, $2" placeholders instead of "?"
	forUpdate   string // row lock suffix for SELECT
	schema      []string
	classifyErr func(error) error
}

// SQLite is the embedded database used for local books and tests. Row locks
// are unnecessary: transactions start with BEGIN IMMEDIATE and hold the
// database write lock until commit.
var SQLite = Dialect{
	Name:        DriverSQLite,
	schema:      sqliteSchema,
	classifyErr: classifySQLite,
}

// Postgres is the server database; the numbering path relies on SELECT ... FOR UPDATE.
var Postgres = Dialect{
	Name:        DriverPostgres,
	numbered:    true,
	forUpdate:   " FOR UPDATE",
	schema:      postgresSchema,
	classifyErr: classifyPostgres,
}

// Rebind rewrites "?" placeholders into the dialect's placeholder syntax.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ForUpdate returns the row-lock clause to append to a SELECT, if any.
func (d Dialect) ForUpdate() string {
	return d.forUpdate
}

func (d Dialect) classify(err error) error {
	if err == nil || d.classifyErr == nil {
		return err
	}
	if errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrSerialization) {
		return err
	}
	return d.classifyErr(err)
}

func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return err
}

func classifySQLite(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch {
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return err
}
