package statements

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cleared-dev/grandlivre/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

// ledger assembles an in-memory chart with per-period movements.
type ledger struct {
	ent     model.Enterprise
	accts   []model.Account
	ids     map[string]int64
	prior   map[int64]model.Balance
	current map[int64]model.Balance
}

func newLedger(chart model.Chart) *ledger {
	return &ledger{
		ent:     model.Enterprise{ID: 1, Name: "Test", Chart: chart},
		ids:     map[string]int64{},
		prior:   map[int64]model.Balance{},
		current: map[int64]model.Balance{},
	}
}

func (l *ledger) add(number string, nature model.Nature, parent string) *ledger {
	id := int64(len(l.accts) + 1)
	a := model.Account{
		ID:            id,
		EnterpriseID:  l.ent.ID,
		Number:        number,
		Label:         "Compte " + number,
		Nature:        nature,
		Class:         model.ClassOf(l.ent.Chart, number),
		OpeningDebit:  decimal.Zero,
		OpeningCredit: decimal.Zero,
		Active:        true,
	}
	if parent != "" {
		a.ParentID = l.ids[parent]
	}
	l.ids[number] = id
	l.accts = append(l.accts, a)
	return l
}

func (l *ledger) open(number, debit, credit string) *ledger {
	a := &l.accts[l.ids[number]-1]
	a.OpeningDebit, a.OpeningCredit = dec(debit), dec(credit)
	return l
}

func (l *ledger) post(number, debit, credit string) *ledger {
	id := l.ids[number]
	l.current[id] = l.current[id].Add(model.Balance{Debit: dec(debit), Credit: dec(credit)})
	return l
}

func (l *ledger) carry(number, debit, credit string) *ledger {
	id := l.ids[number]
	l.prior[id] = l.prior[id].Add(model.Balance{Debit: dec(debit), Credit: dec(credit)})
	return l
}

var period2024 = model.Period{
	ID:           7,
	EnterpriseID: 1,
	Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:          time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	Status:       model.PeriodOpen,
}

func (l *ledger) snapshot(t *testing.T) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(l.ent, period2024, l.accts, l.prior, l.current)
	require.NoError(t, err)
	return s
}

func rowByNumber(tb TrialBalance, number string) (TrialBalanceRow, bool) {
	for _, r := range tb.Rows {
		if r.Number == number {
			return r, true
		}
	}
	return TrialBalanceRow{}, false
}

func TestTrialBalance(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("101000", model.NatureLiability, "").
		add("411000", model.NatureAsset, "").
		add("411001", model.NatureAsset, "411000").
		add("512000", model.NatureAsset, "").
		add("530000", model.NatureAsset, "").
		add("707000", model.NatureRevenue, "").
		carry("512000", "200", "0").
		carry("101000", "0", "200").
		post("411001", "1000", "0").
		post("707000", "0", "1000")

	tb := NewEngine(nil, nil).TrialBalance(l.snapshot(t))

	var numbers []string
	for _, r := range tb.Rows {
		numbers = append(numbers, r.Number)
	}
	assert.Equal(t, []string{"101000", "411000", "411001", "512000", "707000"}, numbers, "530000 never moved")

	parent, _ := rowByNumber(tb, "411000")
	assert.False(t, parent.Leaf)
	assertAmount(t, "1000", parent.Movement.Debit, "parent consolidates its child")
	assertAmount(t, "0", parent.Movement.Credit)

	sales, _ := rowByNumber(tb, "707000")
	assertAmount(t, "1000", sales.Movement.Credit)
	assertAmount(t, "1000", sales.Closing.Credit)

	bank, _ := rowByNumber(tb, "512000")
	assertAmount(t, "200", bank.Opening.Debit)
	assert.True(t, bank.Movement.Debit.IsZero() && bank.Movement.Credit.IsZero())
	assertAmount(t, "200", bank.Closing.Debit)

	assert.True(t, tb.Balanced())
	assertAmount(t, "1000", tb.TotalMovement.Debit, "child not counted twice")
	assertAmount(t, "1200", tb.TotalClosing.Debit)
	assertAmount(t, "1200", tb.TotalClosing.Credit)
}

func TestTrialBalance_CarriedChildStaysInSeries(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("512000", model.NatureAsset, "").
		add("512009", model.NatureAsset, "512000").
		add("5120090", model.NatureAsset, "512000").
		add("512010", model.NatureAsset, "512000").
		add("707000", model.NatureRevenue, "").
		post("512009", "10", "0").
		post("5120090", "20", "0").
		post("512010", "30", "0").
		post("707000", "0", "60")

	tb := NewEngine(nil, nil).TrialBalance(l.snapshot(t))

	var numbers []string
	for _, r := range tb.Rows {
		numbers = append(numbers, r.Number)
	}
	assert.Equal(t, []string{"512000", "512009", "5120090", "512010", "707000"}, numbers)
}

func TestIncomeStatement(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := newLedger(model.ChartFR).
		add("607000", model.NatureExpense, "").
		add("707000", model.NatureRevenue, "").
		add("708000", model.NatureRevenue, "").
		add("512000", model.NatureAsset, "").
		post("607000", "300", "0").
		post("707000", "0", "1000").
		post("708000", "50", "0").
		post("512000", "0", "650")

	is := NewEngine(nil, zap.New(core)).IncomeStatement(l.snapshot(t))

	require.Len(t, is.Expenses, 1)
	assert.Equal(t, "607000", is.Expenses[0].Number)
	assertAmount(t, "300", is.TotalExpenses)
	require.Len(t, is.Revenue, 2)
	assertAmount(t, "1000", is.Revenue[0].Amount)
	assertAmount(t, "-50", is.Revenue[1].Amount, "abnormal revenue is kept")
	assertAmount(t, "950", is.TotalRevenue)
	assertAmount(t, "650", is.NetResult)

	assert.Equal(t, []string{"708000"}, is.Abnormal)
	warnings := logs.All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "708000", warnings[0].ContextMap()["account"])
}

func TestIncomeStatement_OHADAClass8(t *testing.T) {
	l := newLedger(model.ChartOHADA).
		add("CM811000", model.NatureExpense, "").
		add("CM821000", model.NatureRevenue, "").
		add("CM850000", model.NatureAssetOrLiability, "").
		add("CM571000", model.NatureAsset, "").
		post("CM811000", "100", "0").
		post("CM821000", "0", "40").
		post("CM850000", "0", "10").
		post("CM571000", "50", "0")

	is := NewEngine(nil, nil).IncomeStatement(l.snapshot(t))
	assertAmount(t, "100", is.TotalExpenses)
	assertAmount(t, "50", is.TotalRevenue, "ambiguous class 8 follows its sign")
	assertAmount(t, "-50", is.NetResult)
	assert.Empty(t, is.Abnormal)
}

func TestIncomeStatement_FrenchClass8Ignored(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("801000", model.NatureAssetOrLiability, "").
		add("802000", model.NatureAssetOrLiability, "").
		post("801000", "100", "0").
		post("802000", "0", "100")

	is := NewEngine(nil, nil).IncomeStatement(l.snapshot(t))
	assert.Empty(t, is.Expenses)
	assert.Empty(t, is.Revenue)
	assert.True(t, is.NetResult.IsZero())
}

func TestBalanceSheet(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("101000", model.NatureLiability, "").
		add("109000", model.NatureLiability, "").
		add("151000", model.NatureLiability, "").
		add("164000", model.NatureLiability, "").
		add("218300", model.NatureAsset, "").
		add("281830", model.NatureAsset, "").
		add("310000", model.NatureAsset, "").
		add("401000", model.NatureLiability, "").
		add("411000", model.NatureAsset, "").
		add("445660", model.NatureAssetOrLiability, "").
		add("445710", model.NatureAssetOrLiability, "").
		add("512000", model.NatureAsset, "").
		add("512100", model.NatureAsset, "512000").
		add("512200", model.NatureAsset, "512000").
		add("519000", model.NatureLiability, "").
		add("530000", model.NatureAsset, "").
		add("607000", model.NatureExpense, "").
		add("707000", model.NatureRevenue, "").
		post("101000", "0", "5000").
		post("109000", "1000", "0").
		post("151000", "0", "300").
		post("164000", "0", "2000").
		post("218300", "1500", "0").
		post("281830", "0", "500").
		post("310000", "700", "0").
		post("401000", "0", "900").
		post("411000", "1200", "0").
		post("445660", "100", "0").
		post("445710", "0", "250").
		post("512100", "5550", "0").
		post("512200", "450", "0").
		post("519000", "0", "400").
		post("530000", "50", "0").
		post("607000", "800", "0").
		post("707000", "0", "2000")

	engine := NewEngine(nil, nil)
	s := l.snapshot(t)
	bs, err := engine.BalanceSheet(s, engine.IncomeStatement(s))
	require.NoError(t, err)

	sum := func(lines []AccountAmount) string { return total(lines).String() }
	assert.Equal(t, "1000", sum(bs.FixedAssets), "depreciation nets against fixed assets")
	assert.Equal(t, "700", sum(bs.CurrentAssets))
	assert.Equal(t, "2300", sum(bs.Receivables), "includes uncalled capital and deductible VAT")
	assert.Equal(t, "6050", sum(bs.Cash))
	assert.Equal(t, "5000", sum(bs.Equity))
	assert.Equal(t, "300", sum(bs.Provisions))
	assert.Equal(t, "2400", sum(bs.Borrowings))
	assert.Equal(t, "1150", sum(bs.Payables))
	assertAmount(t, "1200", bs.NetResult)
	assertAmount(t, "0", bs.PriorResults)

	assertAmount(t, "10050", bs.TotalAssets)
	assertAmount(t, "3850", bs.TotalLiabilities)
	assertAmount(t, "6200", bs.TotalEquity)
	assert.True(t, bs.Balanced())

	var cash []string
	for _, c := range bs.Cash {
		cash = append(cash, c.Number)
	}
	assert.Equal(t, []string{"512100", "512200", "530000"}, cash, "cash comes from leaves, not the 512000 group")
}

func TestBalanceSheet_UncalledCapitalBySign(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("109000", model.NatureLiability, "").
		add("512000", model.NatureAsset, "").
		post("109000", "0", "100").
		post("512000", "100", "0")

	engine := NewEngine(nil, nil)
	s := l.snapshot(t)
	bs, err := engine.BalanceSheet(s, engine.IncomeStatement(s))
	require.NoError(t, err)
	assert.Empty(t, bs.Receivables)
	require.Len(t, bs.Equity, 1)
	assertAmount(t, "100", bs.Equity[0].Amount)
}

func TestBalanceSheet_PriorResults(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("512000", model.NatureAsset, "").
		add("707000", model.NatureRevenue, "").
		carry("512000", "500", "0").
		carry("707000", "0", "500").
		post("512000", "100", "0").
		post("707000", "0", "100")

	engine := NewEngine(nil, nil)
	s := l.snapshot(t)
	is := engine.IncomeStatement(s)
	assertAmount(t, "100", is.NetResult, "only the period's movement")

	bs, err := engine.BalanceSheet(s, is)
	require.NoError(t, err)
	assertAmount(t, "500", bs.PriorResults)
	assertAmount(t, "600", bs.TotalEquity)
	assertAmount(t, "600", bs.TotalAssets)
}

func TestBalanceSheet_OHADA(t *testing.T) {
	l := newLedger(model.ChartOHADA).
		add("CM101000", model.NatureLiability, "").
		add("CM151000", model.NatureLiability, "").
		add("CM191000", model.NatureLiability, "").
		add("CM521000", model.NatureAsset, "").
		post("CM101000", "0", "1000").
		post("CM151000", "0", "200").
		post("CM191000", "0", "300").
		post("CM521000", "1500", "0")

	engine := NewEngine(nil, nil)
	s := l.snapshot(t)
	bs, err := engine.BalanceSheet(s, engine.IncomeStatement(s))
	require.NoError(t, err)
	assert.Equal(t, "1200", total(bs.Equity).String(), "regulated provisions stay in equity")
	assert.Equal(t, "300", total(bs.Provisions).String())
	assert.Equal(t, "1500", total(bs.Cash).String())
}

func TestBalanceSheet_ParentBalanceInCashIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := newLedger(model.ChartFR).
		add("101000", model.NatureLiability, "").
		add("512000", model.NatureAsset, "").
		add("512100", model.NatureAsset, "512000").
		open("101000", "0", "100").
		open("512000", "100", "0")

	engine := NewEngine(nil, zap.New(core))
	s := l.snapshot(t)
	bs, err := engine.BalanceSheet(s, engine.IncomeStatement(s))

	var tree *model.InconsistentTreeError
	require.ErrorAs(t, err, &tree)
	assertAmount(t, "-100", tree.Difference)
	assertAmount(t, "-100", bs.Difference, "the sheet is still returned")
	assert.Equal(t, 1, logs.FilterMessage("balance sheet does not balance").Len())
}

func TestBalanceSheet_ParentBalanceInFixedAssetsIsConsolidated(t *testing.T) {
	l := newLedger(model.ChartFR).
		add("101000", model.NatureLiability, "").
		add("210000", model.NatureAsset, "").
		add("215400", model.NatureAsset, "210000").
		open("101000", "0", "100").
		open("210000", "100", "0")

	engine := NewEngine(nil, nil)
	s := l.snapshot(t)
	bs, err := engine.BalanceSheet(s, engine.IncomeStatement(s))
	require.NoError(t, err)
	require.Len(t, bs.FixedAssets, 1)
	assert.Equal(t, "210000", bs.FixedAssets[0].Number)
}

func TestNewSnapshot_RejectsBrokenTree(t *testing.T) {
	l := newLedger(model.ChartFR).add("411000", model.NatureAsset, "")
	l.accts[0].ParentID = 42

	_, err := NewSnapshot(l.ent, period2024, l.accts, nil, nil)
	var tree *model.InconsistentTreeError
	require.ErrorAs(t, err, &tree)
}
