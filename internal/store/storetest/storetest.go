// Package storetest opens throwaway ledger databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// New returns a migrated SQLite database living in the test's temp dir.
func New(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// Enterprise inserts an enterprise keeping its books in chart.
func Enterprise(t *testing.T, db *store.DB, chart model.Chart) model.Enterprise {
	t.Helper()
	e := model.Enterprise{Name: "Test " + string(chart), Chart: chart}
	err := db.InTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertEnterprise(context.Background(), &e)
	})
	require.NoError(t, err)
	return e
}
