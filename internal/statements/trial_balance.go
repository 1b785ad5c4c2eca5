package statements

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// TrialBalanceRow is one account of a trial balance. Movement is the
// period's net movement split into a debit or credit column; Closing is the
// consolidated balance at period end, likewise split.
type TrialBalanceRow struct {
	AccountID int64
	Number    string
	Label     string
	Leaf      bool
	Opening   model.Balance
	Movement  model.Balance
	Closing   model.Balance
}

// TrialBalance lists every account that moved or carries a balance.
type TrialBalance struct {
	Period model.Period
	Rows   []TrialBalanceRow
	// Totals summed over top-level accounts only, so nothing is counted twice.
	TotalOpening  model.Balance
	TotalMovement model.Balance
	TotalClosing  model.Balance
}

// Balanced reports whether movement debits equal movement credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalMovement.Debit.Equal(tb.TotalMovement.Credit)
}

// TrialBalance builds the trial balance of a snapshot, ordered by account number.
func (e *Engine) TrialBalance(s *Snapshot) TrialBalance {
	tb := TrialBalance{
		Period:        s.Period,
		TotalOpening:  model.Split(decimal.Zero),
		TotalMovement: model.Split(decimal.Zero),
		TotalClosing:  model.Split(decimal.Zero),
	}
	for _, a := range s.Tree.Accounts() {
		movement := s.Movement(a.ID)
		closing := s.Closing(a.ID).Net()
		if movement.IsZero() && closing.IsZero() {
			continue
		}
		row := TrialBalanceRow{
			AccountID: a.ID,
			Number:    a.Number,
			Label:     a.Label,
			Leaf:      !s.Tree.HasChildren(a.ID),
			Opening:   model.Split(s.Opening(a.ID).Net()),
			Movement:  model.Split(movement),
			Closing:   model.Split(closing),
		}
		tb.Rows = append(tb.Rows, row)
		if !a.HasParent() {
			tb.TotalOpening = tb.TotalOpening.Add(row.Opening)
			tb.TotalMovement = tb.TotalMovement.Add(row.Movement)
			tb.TotalClosing = tb.TotalClosing.Add(row.Closing)
		}
	}
	return tb
}
