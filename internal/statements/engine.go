// Package statements derives the trial balance, balance sheet and income
// statement of a period from consolidated account balances. It never reads
// ledger entries.
package statements

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// Snapshot is an account tree valued for one period: opening balances are
// the accounts' own openings plus every earlier period's movement, closing
// balances add the period's own movement.
type Snapshot struct {
	Enterprise model.Enterprise
	Period     model.Period
	Tree       *accounts.Tree

	opening map[int64]model.Balance
	closing map[int64]model.Balance
}

// NewSnapshot values accts for period p. prior holds each account's movement
// over the periods that end before p starts, current its movement within p.
func NewSnapshot(ent model.Enterprise, p model.Period, accts []model.Account, prior, current map[int64]model.Balance) (*Snapshot, error) {
	value := func(a model.Account) (opening, closing model.Balance) {
		opening = a.Opening()
		if b, ok := prior[a.ID]; ok {
			opening = opening.Add(b)
		}
		closing = opening
		if b, ok := current[a.ID]; ok {
			closing = closing.Add(b)
		}
		return opening, closing
	}
	tree, err := accounts.Build(accts, value)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Enterprise: ent, Period: p, Tree: tree}
	s.opening, s.closing = tree.ConsolidateAll()
	return s, nil
}

// Opening returns the consolidated opening balance of an account.
func (s *Snapshot) Opening(accountID int64) model.Balance { return s.opening[accountID] }

// Closing returns the consolidated closing balance of an account.
func (s *Snapshot) Closing(accountID int64) model.Balance { return s.closing[accountID] }

// Movement returns the consolidated net movement of an account over the
// period, positive on the debit side.
func (s *Snapshot) Movement(accountID int64) decimal.Decimal {
	return s.closing[accountID].Net().Sub(s.opening[accountID].Net())
}

// Engine computes financial statements.
type Engine struct {
	db  *store.DB
	log *zap.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(db *store.DB, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{db: db, log: log}
}

// Load reads the chart and per-period balances of an enterprise and values
// them for periodID.
func (e *Engine) Load(ctx context.Context, enterpriseID, periodID int64) (*Snapshot, error) {
	var (
		ent     model.Enterprise
		period  model.Period
		accts   []model.Account
		prior   = map[int64]model.Balance{}
		current map[int64]model.Balance
	)
	err := e.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if ent, err = tx.GetEnterprise(ctx, enterpriseID); err != nil {
			return err
		}
		if period, err = tx.GetPeriod(ctx, periodID); err != nil {
			return err
		}
		if period.EnterpriseID != enterpriseID {
			return fmt.Errorf("period %d of enterprise %d: %w", periodID, enterpriseID, model.ErrNotFound)
		}
		if accts, err = tx.ListAccounts(ctx, enterpriseID); err != nil {
			return err
		}
		periods, err := tx.ListPeriods(ctx, enterpriseID)
		if err != nil {
			return err
		}
		for _, p := range periods {
			if !p.End.Before(period.Start) {
				continue
			}
			balances, err := tx.PeriodBalances(ctx, enterpriseID, p.ID)
			if err != nil {
				return err
			}
			for accountID, b := range balances {
				prior[accountID] = prior[accountID].Add(b)
			}
		}
		current, err = tx.PeriodBalances(ctx, enterpriseID, period.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading balances: %w", err)
	}
	return NewSnapshot(ent, period, accts, prior, current)
}

// AccountAmount is one line of a statement section.
type AccountAmount struct {
	AccountID int64
	Number    string
	Label     string
	Amount    decimal.Decimal
}

func amountOf(a model.Account, amount decimal.Decimal) AccountAmount {
	return AccountAmount{AccountID: a.ID, Number: a.Number, Label: a.Label, Amount: amount}
}

func total(lines []AccountAmount) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount)
	}
	return sum
}
