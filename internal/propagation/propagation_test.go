package propagation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/journal"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/numbering"
	"github.com/cleared-dev/grandlivre/internal/propagation"
	"github.com/cleared-dev/grandlivre/internal/store"
	"github.com/cleared-dev/grandlivre/internal/store/storetest"
)

var ctx = context.Background()

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	db         *store.DB
	enterprise model.Enterprise
	p2024      model.Period
	p2025      model.Period
	accounts   *accounts.Service
	journal    *journal.Service
	prop       *propagation.Service
}

// newFixture builds a ledger whose journal does not propagate on its own, so
// the tests decide when Apply runs.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.New(t)
	f := &fixture{
		db:         db,
		enterprise: storetest.Enterprise(t, db, model.ChartFR),
		accounts:   accounts.NewService(db, nil),
		journal:    journal.NewService(db, numbering.New(db, nil), nil, nil),
		prop:       propagation.New(db, nil),
	}
	_, err := f.accounts.Seed(ctx, f.enterprise.ID)
	require.NoError(t, err)
	f.p2024, err = f.journal.OpenPeriod(ctx, f.enterprise.ID, day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	f.p2025, err = f.journal.OpenPeriod(ctx, f.enterprise.ID, day(2025, 1, 1), day(2025, 12, 31))
	require.NoError(t, err)
	return f
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func (f *fixture) entry(t *testing.T, on time.Time, debit, credit, amount string, validate bool) model.Entry {
	t.Helper()
	e, err := f.journal.Create(ctx, journal.CreateParams{
		EnterpriseID: f.enterprise.ID,
		Journal:      "OD",
		Date:         on,
		Label:        "Opération diverse",
		User:         "alice",
		Lines: []journal.LineParams{
			{Account: debit, Debit: dec(amount), Credit: decimal.Zero},
			{Account: credit, Debit: decimal.Zero, Credit: dec(amount)},
		},
	})
	require.NoError(t, err)
	if validate {
		res, err := f.journal.Validate(ctx, e.ID, "bob")
		require.NoError(t, err)
		e = res.Entry
	}
	return e
}

// graftChild hangs a new account under parent straight through the store,
// the way a chart loaded by another tool can end up, bypassing the service
// check that refuses parents already in use.
func (f *fixture) graftChild(t *testing.T, parent, number string) {
	t.Helper()
	p := f.account(t, parent)
	child := model.Account{
		EnterpriseID:  f.enterprise.ID,
		Number:        number,
		Label:         "Sous-compte " + number,
		Nature:        p.Nature,
		Class:         p.Class,
		ParentID:      p.ID,
		OpeningDebit:  decimal.Zero,
		OpeningCredit: decimal.Zero,
		Debit:         decimal.Zero,
		Credit:        decimal.Zero,
		Active:        true,
	}
	err := f.db.InTx(ctx, func(tx *store.Tx) error { return tx.InsertAccount(ctx, &child) })
	require.NoError(t, err)
}

func (f *fixture) account(t *testing.T, number string) model.Account {
	t.Helper()
	a, err := f.accounts.ByNumber(ctx, f.enterprise.ID, number)
	require.NoError(t, err)
	return a
}

func (f *fixture) periodBalances(t *testing.T, p model.Period) map[int64]model.Balance {
	t.Helper()
	var out map[int64]model.Balance
	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.PeriodBalances(ctx, f.enterprise.ID, p.ID)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) applied(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	var ok bool
	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		ok, err = tx.IsApplied(ctx, id)
		return err
	})
	require.NoError(t, err)
	return ok
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	e := f.entry(t, day(2024, 5, 2), "512000", "707000", "300.50", true)

	require.NoError(t, f.prop.Apply(ctx, e.ID))
	assert.True(t, f.applied(t, e.ID))

	bank, sales := f.account(t, "512000"), f.account(t, "707000")
	assertAmount(t, "300.50", bank.Debit)
	assertAmount(t, "0", bank.Credit)
	assertAmount(t, "300.50", sales.Credit)

	byPeriod := f.periodBalances(t, f.p2024)
	assertAmount(t, "300.50", byPeriod[bank.ID].Debit)
	assertAmount(t, "300.50", byPeriod[sales.ID].Credit)
	assert.Empty(t, f.periodBalances(t, f.p2025))
}

func TestApply_Idempotent(t *testing.T) {
	f := newFixture(t)
	e := f.entry(t, day(2024, 5, 2), "512000", "707000", "100", true)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.prop.Apply(ctx, e.ID))
	}
	assertAmount(t, "100", f.account(t, "512000").Debit)
	assertAmount(t, "100", f.periodBalances(t, f.p2024)[f.account(t, "512000").ID].Debit)
}

func TestApply_RejectsDraft(t *testing.T) {
	f := newFixture(t)
	e := f.entry(t, day(2024, 5, 2), "512000", "707000", "100", false)

	err := f.prop.Apply(ctx, e.ID)
	var state *model.InvalidStateError
	require.ErrorAs(t, err, &state)
	assert.Equal(t, "DRAFT", state.State)
	assert.False(t, f.applied(t, e.ID))
}

func TestApply_AccountWithChildren(t *testing.T) {
	f := newFixture(t)
	e := f.entry(t, day(2024, 5, 2), "411000", "707000", "100", true)
	f.graftChild(t, "411000", "411001")

	err := f.prop.Apply(ctx, e.ID)
	var tree *model.InconsistentTreeError
	require.ErrorAs(t, err, &tree)
	assert.Contains(t, tree.Reason, "411000")

	// The whole application rolled back, marker included.
	assert.False(t, f.applied(t, e.ID))
	assert.True(t, f.account(t, "707000").Credit.IsZero())
}

func TestApply_SeparatesPeriods(t *testing.T) {
	f := newFixture(t)
	a := f.entry(t, day(2024, 11, 30), "512000", "707000", "100", true)
	b := f.entry(t, day(2025, 1, 15), "512000", "707000", "40", true)
	require.NoError(t, f.prop.Apply(ctx, a.ID))
	require.NoError(t, f.prop.Apply(ctx, b.ID))

	bank := f.account(t, "512000")
	assertAmount(t, "140", bank.Debit, "cumulative balance spans periods")
	assertAmount(t, "100", f.periodBalances(t, f.p2024)[bank.ID].Debit)
	assertAmount(t, "40", f.periodBalances(t, f.p2025)[bank.ID].Debit)
}

func TestApplyPending(t *testing.T) {
	f := newFixture(t)
	f.entry(t, day(2024, 2, 1), "512000", "707000", "10", true)
	f.entry(t, day(2024, 2, 2), "512000", "707000", "20", true)
	f.entry(t, day(2024, 2, 3), "512000", "707000", "40", false)

	n, err := f.prop.ApplyPending(ctx, f.enterprise.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertAmount(t, "30", f.account(t, "512000").Debit)

	n, err = f.prop.ApplyPending(ctx, f.enterprise.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyPending_CollectsFailures(t *testing.T) {
	f := newFixture(t)
	bad := f.entry(t, day(2024, 2, 1), "411000", "707000", "10", true)
	f.entry(t, day(2024, 2, 2), "512000", "707000", "20", true)
	f.graftChild(t, "411000", "411001")

	n, err := f.prop.ApplyPending(ctx, f.enterprise.ID)
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.ID.String())
	assertAmount(t, "20", f.account(t, "512000").Debit)
}

func TestResync(t *testing.T) {
	f := newFixture(t)
	f.entry(t, day(2024, 3, 1), "512000", "707000", "75", true)
	f.entry(t, day(2025, 3, 1), "607000", "512000", "25", true)
	_, err := f.prop.ApplyPending(ctx, f.enterprise.ID)
	require.NoError(t, err)
	_, err = f.journal.ClosePeriod(ctx, f.p2024.ID)
	require.NoError(t, err)

	bank := f.account(t, "512000")
	err = f.db.InTx(ctx, func(tx *store.Tx) error {
		return tx.SetAccountBalance(ctx, bank.ID, dec("9999"), decimal.Zero)
	})
	require.NoError(t, err)

	n, err := f.prop.Resync(ctx, f.enterprise.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "closed entries are replayed too")

	bank = f.account(t, "512000")
	assertAmount(t, "75", bank.Debit)
	assertAmount(t, "25", bank.Credit)
	assertAmount(t, "75", f.periodBalances(t, f.p2024)[bank.ID].Debit)
	assertAmount(t, "25", f.periodBalances(t, f.p2025)[bank.ID].Credit)
}
