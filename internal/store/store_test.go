package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
	"github.com/cleared-dev/grandlivre/internal/store/storetest"
)

var ctx = context.Background()

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fixture is an enterprise with a period and two leaf accounts.
type fixture struct {
	db         *store.DB
	enterprise model.Enterprise
	period     model.Period
	client     model.Account
	sales      model.Account
}

func newFixture(t *testing.T, db *store.DB) fixture {
	t.Helper()
	f := fixture{db: db, enterprise: storetest.Enterprise(t, db, model.ChartFR)}
	err := db.InTx(ctx, func(tx *store.Tx) error {
		f.period = model.Period{EnterpriseID: f.enterprise.ID, Start: date("2024-01-01"), End: date("2024-12-31"), Status: model.PeriodOpen}
		if err := tx.InsertPeriod(ctx, &f.period); err != nil {
			return err
		}
		f.client = model.Account{EnterpriseID: f.enterprise.ID, Number: "411000", Label: "Clients", Nature: model.NatureAsset, Class: 4, Active: true}
		if err := tx.InsertAccount(ctx, &f.client); err != nil {
			return err
		}
		f.sales = model.Account{EnterpriseID: f.enterprise.ID, Number: "707000", Label: "Ventes", Nature: model.NatureRevenue, Class: 7, Active: true}
		return tx.InsertAccount(ctx, &f.sales)
	})
	require.NoError(t, err)
	return f
}

func (f fixture) entry(number string, day string, amount string) model.Entry {
	return model.Entry{
		EnterpriseID: f.enterprise.ID,
		PeriodID:     f.period.ID,
		Number:       number,
		Journal:      "VT",
		Date:         date(day),
		Label:        "Facture " + number,
		Status:       model.StatusDraft,
		CreatedBy:    "alice",
		Lines: []model.Line{
			{AccountID: f.client.ID, Label: "client", Debit: d(amount), Credit: decimal.Zero},
			{AccountID: f.sales.ID, Label: "vente", Debit: decimal.Zero, Credit: d(amount)},
		},
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`
	assert.Equal(t, q, store.SQLite.Rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, store.Postgres.Rebind(q))
}

func TestForUpdate(t *testing.T) {
	assert.Empty(t, store.SQLite.ForUpdate())
	assert.Equal(t, " FOR UPDATE", store.Postgres.ForUpdate())
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/x.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", store.SQLiteDSN("/tmp/x.db"))
	assert.Equal(t, "file:x.db?mode=memory", store.SQLiteDSN("file:x.db?mode=memory"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open("oracle", "x")
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestAccounts(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		child := model.Account{EnterpriseID: f.enterprise.ID, Number: "411001", Label: "Client A", Nature: model.NatureAsset, Class: 4, ParentID: f.client.ID, Active: true}
		require.NoError(t, tx.InsertAccount(ctx, &child))

		got, err := tx.GetAccountByNumber(ctx, f.enterprise.ID, "411001")
		require.NoError(t, err)
		assert.Equal(t, child.ID, got.ID)
		assert.Equal(t, f.client.ID, got.ParentID)
		assert.True(t, got.Active)
		assert.True(t, got.Debit.IsZero())

		has, err := tx.HasChildren(ctx, f.client.ID)
		require.NoError(t, err)
		assert.True(t, has)
		has, err = tx.HasChildren(ctx, f.sales.ID)
		require.NoError(t, err)
		assert.False(t, has)

		numbers, err := tx.AccountNumbersWithPrefix(ctx, f.enterprise.ID, "411")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"411000", "411001"}, numbers)

		children, err := tx.ChildNumbers(ctx, f.client.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"411001"}, children)

		all, err := tx.ListAccounts(ctx, f.enterprise.ID)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "411000", all[0].Number)
		assert.Equal(t, "707000", all[2].Number)

		require.NoError(t, tx.SetAccountBalance(ctx, child.ID, d("12.50"), d("2")))
		got, err = tx.GetAccount(ctx, child.ID)
		require.NoError(t, err)
		assert.True(t, d("12.50").Equal(got.Debit))
		assert.True(t, d("2").Equal(got.Credit))
		return nil
	})
	require.NoError(t, err)
}

func TestInsertAccount_Duplicate(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		dup := model.Account{EnterpriseID: f.enterprise.ID, Number: "411000", Label: "again", Nature: model.NatureAsset, Class: 4}
		return tx.InsertAccount(ctx, &dup)
	})
	assert.ErrorIs(t, err, store.ErrUniqueViolation)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		_, err := tx.GetAccount(ctx, 9999)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = tx.GetEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = tx.PeriodForDate(ctx, f.enterprise.ID, date("2030-01-01"))
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	boom := errors.New("boom")

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		a := model.Account{EnterpriseID: f.enterprise.ID, Number: "512000", Label: "Banque", Nature: model.NatureAsset, Class: 5}
		require.NoError(t, tx.InsertAccount(ctx, &a))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = f.db.InTx(ctx, func(tx *store.Tx) error {
		_, err := tx.GetAccountByNumber(ctx, f.enterprise.ID, "512000")
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEntries(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	e := f.entry("VT000001", "2024-03-01", "1000")

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &e))
		assert.NotEqual(t, uuid.Nil, e.ID)

		exists, err := tx.EntryNumberExists(ctx, f.enterprise.ID, "VT000001")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := tx.GetEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "VT000001", got.Number)
		assert.Equal(t, model.StatusDraft, got.Status)
		assert.Equal(t, date("2024-03-01"), got.Date)
		assert.Nil(t, got.ValidatedAt)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, 1, got.Lines[0].Position)
		assert.Equal(t, "411000", got.Lines[0].AccountNumber)
		assert.True(t, d("1000").Equal(got.Lines[0].Debit))
		assert.Equal(t, "707000", got.Lines[1].AccountNumber)

		byNumber, err := tx.GetEntryByNumber(ctx, f.enterprise.ID, "VT000001")
		require.NoError(t, err)
		assert.Equal(t, e.ID, byNumber.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertEntry_DuplicateNumber(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	first := f.entry("VT000001", "2024-03-01", "10")
	second := f.entry("VT000001", "2024-03-02", "20")

	require.NoError(t, f.db.InTx(ctx, func(tx *store.Tx) error { return tx.InsertEntry(ctx, &first) }))
	err := f.db.InTx(ctx, func(tx *store.Tx) error { return tx.InsertEntry(ctx, &second) })
	assert.ErrorIs(t, err, store.ErrUniqueViolation)
}

func TestReplaceLinesAndDelete(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	e := f.entry("VT000001", "2024-03-01", "1000")

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &e))

		e.Label = "corrigée"
		e.Date = date("2024-03-05")
		require.NoError(t, tx.UpdateEntryHeader(ctx, e))
		require.NoError(t, tx.ReplaceLines(ctx, e.ID, []model.Line{
			{AccountID: f.client.ID, Debit: d("250"), Credit: decimal.Zero},
			{AccountID: f.sales.ID, Debit: decimal.Zero, Credit: d("200")},
			{AccountID: f.sales.ID, Debit: decimal.Zero, Credit: d("50")},
		}))

		got, err := tx.GetEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "corrigée", got.Label)
		assert.Equal(t, date("2024-03-05"), got.Date)
		require.Len(t, got.Lines, 3)
		assert.Equal(t, 3, got.Lines[2].Position)

		require.NoError(t, tx.DeleteEntry(ctx, e.ID))
		_, err = tx.GetEntry(ctx, e.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		entries, err := tx.ListEntries(ctx, store.EntryFilter{EnterpriseID: f.enterprise.ID})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)
}

func TestSetEntryStatus(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	e := f.entry("VT000001", "2024-03-01", "1000")
	at := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &e))
		require.NoError(t, tx.SetEntryStatus(ctx, e.ID, model.StatusValidated, "bob", &at))
		// Closing keeps the validation stamp.
		require.NoError(t, tx.SetEntryStatus(ctx, e.ID, model.StatusClosed, "", nil))

		got, err := tx.GetEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, got.Status)
		assert.Equal(t, "bob", got.ValidatedBy)
		require.NotNil(t, got.ValidatedAt)
		assert.True(t, at.Equal(*got.ValidatedAt))
		return nil
	})
	require.NoError(t, err)
}

func TestListEntries_Filters(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	var bank model.Account
	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		bank = model.Account{EnterpriseID: f.enterprise.ID, Number: "512000", Label: "Banque", Nature: model.NatureAsset, Class: 5, Active: true}
		require.NoError(t, tx.InsertAccount(ctx, &bank))

		for _, e := range []model.Entry{
			f.entry("VT000002", "2024-02-10", "10"),
			f.entry("VT000001", "2024-01-10", "20"),
			f.entry("VT000003", "2024-03-10", "30"),
		} {
			require.NoError(t, tx.InsertEntry(ctx, &e))
		}
		payment := f.entry("BQ000001", "2024-02-15", "20")
		payment.Journal = "BQ"
		payment.Lines[0].AccountID = bank.ID
		payment.Lines[1].AccountID = f.client.ID
		require.NoError(t, tx.InsertEntry(ctx, &payment))
		return tx.SetEntryStatus(ctx, payment.ID, model.StatusValidated, "bob", nil)
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter store.EntryFilter
		want   []string
	}{
		{"all ordered by date", store.EntryFilter{}, []string{"VT000001", "VT000002", "BQ000001", "VT000003"}},
		{"date range", store.EntryFilter{From: date("2024-02-01"), To: date("2024-02-28")}, []string{"VT000002", "BQ000001"}},
		{"account", store.EntryFilter{AccountID: bank.ID}, []string{"BQ000001"}},
		{"journal", store.EntryFilter{Journal: "VT"}, []string{"VT000001", "VT000002", "VT000003"}},
		{"status", store.EntryFilter{Statuses: []model.EntryStatus{model.StatusValidated}}, []string{"BQ000001"}},
		{"period", store.EntryFilter{PeriodID: f.period.ID, To: date("2024-01-31")}, []string{"VT000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.EnterpriseID = f.enterprise.ID
			var got []string
			err := f.db.InTx(ctx, func(tx *store.Tx) error {
				entries, err := tx.ListEntries(ctx, tt.filter)
				for _, e := range entries {
					require.Len(t, e.Lines, 2)
					got = append(got, e.Number)
				}
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequences(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		last, err := tx.LockSequence(ctx, f.enterprise.ID, "VT")
		require.NoError(t, err)
		assert.Equal(t, int64(0), last)
		require.NoError(t, tx.SetSequence(ctx, f.enterprise.ID, "VT", 7, 2024))

		last, err = tx.LockSequence(ctx, f.enterprise.ID, "VT")
		require.NoError(t, err)
		assert.Equal(t, int64(7), last)

		last, err = tx.LockSequence(ctx, f.enterprise.ID, "AC")
		require.NoError(t, err)
		assert.Equal(t, int64(0), last)
		return nil
	})
	require.NoError(t, err)
}

func TestBalances(t *testing.T) {
	f := newFixture(t, storetest.New(t))
	e := f.entry("VT000001", "2024-03-01", "1000")
	now := time.Now()

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &e))
		require.NoError(t, tx.SetEntryStatus(ctx, e.ID, model.StatusValidated, "bob", &now))

		pending, err := tx.UnappliedEntryIDs(ctx, f.enterprise.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{e.ID}, pending)

		first, err := tx.MarkApplied(ctx, e.ID, now)
		require.NoError(t, err)
		assert.True(t, first)
		again, err := tx.MarkApplied(ctx, e.ID, now)
		require.NoError(t, err)
		assert.False(t, again)

		applied, err := tx.IsApplied(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, applied)

		pending, err = tx.UnappliedEntryIDs(ctx, f.enterprise.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)

		require.NoError(t, tx.AddPeriodBalance(ctx, f.client.ID, f.period.ID, d("1000"), decimal.Zero))
		require.NoError(t, tx.AddPeriodBalance(ctx, f.client.ID, f.period.ID, d("0.5"), d("300")))
		require.NoError(t, tx.SetAccountBalance(ctx, f.client.ID, d("1000.5"), d("300")))

		balances, err := tx.PeriodBalances(ctx, f.enterprise.ID, f.period.ID)
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.True(t, d("1000.5").Equal(balances[f.client.ID].Debit))
		assert.True(t, d("300").Equal(balances[f.client.ID].Credit))

		require.NoError(t, tx.ResetBalances(ctx, f.enterprise.ID))
		balances, err = tx.PeriodBalances(ctx, f.enterprise.ID, f.period.ID)
		require.NoError(t, err)
		assert.Empty(t, balances)
		client, err := tx.GetAccount(ctx, f.client.ID)
		require.NoError(t, err)
		assert.True(t, client.Debit.IsZero())
		applied, err = tx.IsApplied(ctx, e.ID)
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)
}

func TestPeriods(t *testing.T) {
	f := newFixture(t, storetest.New(t))

	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		next := model.Period{EnterpriseID: f.enterprise.ID, Start: date("2025-01-01"), End: date("2025-12-31"), Status: model.PeriodOpen}
		require.NoError(t, tx.InsertPeriod(ctx, &next))

		got, err := tx.PeriodForDate(ctx, f.enterprise.ID, date("2025-06-30"))
		require.NoError(t, err)
		assert.Equal(t, next.ID, got.ID)

		got, err = tx.PeriodForDate(ctx, f.enterprise.ID, date("2024-12-31"))
		require.NoError(t, err)
		assert.Equal(t, f.period.ID, got.ID)

		require.NoError(t, tx.SetPeriodStatus(ctx, f.period.ID, model.PeriodClosed))
		periods, err := tx.ListPeriods(ctx, f.enterprise.ID)
		require.NoError(t, err)
		require.Len(t, periods, 2)
		assert.Equal(t, model.PeriodClosed, periods[0].Status)
		assert.Equal(t, model.PeriodOpen, periods[1].Status)
		return nil
	})
	require.NoError(t, err)
}

// TestPostgres runs the same round trip against a real server when
// GRANDLIVRE_TEST_POSTGRES_DSN points at one.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("GRANDLIVRE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GRANDLIVRE_TEST_POSTGRES_DSN not set")
	}
	db, err := store.Open(store.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.Migrate(ctx))

	f := newFixture(t, db)
	e := f.entry("VT000001", "2024-03-01", "1000")
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error { return tx.InsertEntry(ctx, &e) }))

	dup := f.entry("VT000001", "2024-03-02", "5")
	err = db.InTx(ctx, func(tx *store.Tx) error { return tx.InsertEntry(ctx, &dup) })
	assert.ErrorIs(t, err, store.ErrUniqueViolation)

	err = db.InTx(ctx, func(tx *store.Tx) error {
		got, err := tx.LockEntry(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, got.Lines, 2)
		assert.True(t, d("1000").Equal(got.Lines[0].Debit))
		require.NoError(t, tx.AddPeriodBalance(ctx, f.client.ID, f.period.ID, d("1000"), decimal.Zero))
		last, err := tx.LockSequence(ctx, f.enterprise.ID, "VT")
		require.NoError(t, err)
		assert.Equal(t, int64(0), last)
		return nil
	})
	require.NoError(t, err)
}
