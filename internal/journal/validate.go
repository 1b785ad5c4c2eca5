package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// ValidateResult reports a successful validation. PropagationErr is set when
// the entry was validated but folding it into balances failed; the entry then
// stays pending until the next propagation pass.
type ValidateResult struct {
	Entry          model.Entry
	PropagationErr error
}

// Validate moves a DRAFT entry to VALIDATED. The entry is re-read under lock
// rather than trusted from the caller. It must have at least one line, a
// nonzero total, and equal debit and credit sums. Balance propagation runs
// afterwards in its own transaction and its failure does not undo the
// validation.
func (s *Service) Validate(ctx context.Context, entryID uuid.UUID, user string) (ValidateResult, error) {
	if user == "" {
		return ValidateResult{}, &model.InvalidInputError{Problems: []string{"validating user is required"}}
	}

	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if e.Status != model.StatusDraft {
			return &model.InvalidStateError{Subject: "entry " + e.Number, State: string(e.Status), Operation: "validate"}
		}
		if err := CheckBalanced(e); err != nil {
			return err
		}
		period, err := tx.GetPeriod(ctx, e.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != model.PeriodOpen {
			return &model.InvalidStateError{Subject: periodName(period), State: string(period.Status), Operation: "validate entries in"}
		}
		// The chart may have changed since the draft was written.
		for _, l := range e.Lines {
			a, err := tx.GetAccount(ctx, l.AccountID)
			if err != nil {
				return err
			}
			if err := checkTarget(ctx, tx, l.Position, a); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		if err := tx.SetEntryStatus(ctx, e.ID, model.StatusValidated, user, &now); err != nil {
			return err
		}
		e.Status = model.StatusValidated
		e.ValidatedBy = user
		e.ValidatedAt = &now
		return nil
	})
	if err != nil {
		return ValidateResult{}, fmt.Errorf("validating entry: %w", err)
	}
	s.log.Info("entry validated", zap.String("number", e.Number), zap.String("user", user))

	res := ValidateResult{Entry: e}
	if s.applier != nil {
		if err := s.applier.Apply(ctx, e.ID); err != nil {
			s.log.Error("balance propagation failed; entry left pending",
				zap.String("number", e.Number), zap.String("entry_id", e.ID.String()), zap.Error(err))
			res.PropagationErr = err
		}
	}
	return res, nil
}

// closeEntry moves a VALIDATED entry to CLOSED, after which it is immutable.
// Only ClosePeriod calls it.
func closeEntry(ctx context.Context, tx *store.Tx, e model.Entry) error {
	if e.Status != model.StatusValidated {
		return &model.InvalidStateError{Subject: "entry " + e.Number, State: string(e.Status), Operation: "close"}
	}
	return tx.SetEntryStatus(ctx, e.ID, model.StatusClosed, "", nil)
}

// CheckBalanced reports an UnbalancedEntryError when e has no lines, a zero
// total, or debits that differ from credits.
func CheckBalanced(e model.Entry) error {
	debit, credit := e.Totals()
	if len(e.Lines) == 0 || (debit.IsZero() && credit.IsZero()) || !debit.Equal(credit) {
		return &model.UnbalancedEntryError{EntryNumber: e.Number, Debit: debit, Credit: credit}
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// CheckLine enforces the shape of a single line: exactly one strictly
// positive side, the other exactly zero, and no fractions of a cent.
func CheckLine(position int, account string, debit, credit decimal.Decimal) error {
	fail := func(format string, args ...any) error {
		return &model.InvalidLineError{Position: position, Account: account, Description: fmt.Sprintf(format, args...)}
	}
	if debit.IsNegative() || credit.IsNegative() {
		return fail("amounts must not be negative")
	}
	hasDebit, hasCredit := debit.IsPositive(), credit.IsPositive()
	if hasDebit == hasCredit {
		return fail("line must have exactly one of debit or credit")
	}
	for _, amt := range []decimal.Decimal{debit, credit} {
		if !amt.Mul(hundred).Equal(amt.Mul(hundred).Floor()) {
			return fail("amount %s has more than 2 decimal places", amt)
		}
	}
	return nil
}

// resolveLines maps account numbers to accounts and checks every line. All
// unknown numbers are reported together.
func resolveLines(ctx context.Context, tx *store.Tx, enterpriseID int64, params []LineParams) ([]model.Line, error) {
	lines := make([]model.Line, 0, len(params))
	var missing []string
	var problems []error
	for i, p := range params {
		pos := i + 1
		if err := CheckLine(pos, p.Account, p.Debit, p.Credit); err != nil {
			problems = append(problems, err)
			continue
		}
		a, err := tx.GetAccountByNumber(ctx, enterpriseID, p.Account)
		if errors.Is(err, model.ErrNotFound) {
			missing = append(missing, p.Account)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := checkTarget(ctx, tx, pos, a); err != nil {
			problems = append(problems, err)
			continue
		}
		lines = append(lines, model.Line{
			Position:      pos,
			AccountID:     a.ID,
			AccountNumber: a.Number,
			Label:         p.Label,
			Debit:         p.Debit,
			Credit:        p.Credit,
		})
	}
	if len(missing) > 0 {
		return nil, &model.MissingAccountError{Numbers: missing}
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return lines, nil
}

// checkTarget rejects lines on retired accounts and on accounts with
// children: only leaves absorb amounts.
func checkTarget(ctx context.Context, tx *store.Tx, position int, a model.Account) error {
	if !a.Active {
		return &model.InvalidLineError{Position: position, Account: a.Number, Description: "account is inactive"}
	}
	parent, err := tx.HasChildren(ctx, a.ID)
	if err != nil {
		return err
	}
	if parent {
		return &model.InvalidLineError{Position: position, Account: a.Number, Description: "account has sub-accounts; post to one of them"}
	}
	return nil
}

// openPeriodFor returns the OPEN period containing d.
func openPeriodFor(ctx context.Context, tx *store.Tx, enterpriseID int64, d time.Time, op string) (model.Period, error) {
	p, err := tx.PeriodForDate(ctx, enterpriseID, d)
	if err != nil {
		return model.Period{}, err
	}
	if p.Status != model.PeriodOpen {
		return model.Period{}, &model.InvalidStateError{Subject: periodName(p), State: string(p.Status), Operation: op}
	}
	return p, nil
}

func periodName(p model.Period) string {
	return fmt.Sprintf("period %s..%s", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}
