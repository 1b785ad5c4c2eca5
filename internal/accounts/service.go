package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/id"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// Service manages an enterprise's chart of accounts.
type Service struct {
	db  *store.DB
	log *zap.Logger
}

// NewService creates an account Service. A nil logger discards output.
func NewService(db *store.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// CreateParams holds the fields of a new account. Nature defaults from the
// account class when empty.
type CreateParams struct {
	EnterpriseID    int64        `validate:"required"`
	Number          string       `validate:"required,max=32"`
	Label           string       `validate:"required,max=200"`
	Nature          model.Nature `validate:"nature"`
	ParentNumber    string
	AcceptsChildren bool
	OpeningDebit    decimal.Decimal
	OpeningCredit   decimal.Decimal
}

// Create adds an account to an enterprise's chart.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	if err := model.Validate(p); err != nil {
		return model.Account{}, err
	}
	var acct model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		ent, err := tx.GetEnterprise(ctx, p.EnterpriseID)
		if err != nil {
			return err
		}
		acct, err = s.create(ctx, tx, ent, Definition{
			Number:          p.Number,
			Label:           p.Label,
			Nature:          p.Nature,
			Parent:          p.ParentNumber,
			AcceptsChildren: p.AcceptsChildren,
			OpeningDebit:    p.OpeningDebit,
			OpeningCredit:   p.OpeningCredit,
		})
		return err
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("creating account %s: %w", p.Number, err)
	}
	return acct, nil
}

func (s *Service) create(ctx context.Context, tx *store.Tx, ent model.Enterprise, d Definition) (model.Account, error) {
	if err := CheckNumber(ent.Chart, d.Number); err != nil {
		return model.Account{}, err
	}
	if d.OpeningDebit.IsNegative() || d.OpeningCredit.IsNegative() {
		return model.Account{}, &model.InvalidInputError{Problems: []string{"opening balance must not be negative"}}
	}

	class := model.ClassOf(ent.Chart, d.Number)
	acct := model.Account{
		EnterpriseID:    ent.ID,
		Number:          d.Number,
		Label:           d.Label,
		Nature:          d.Nature,
		Class:           class,
		AcceptsChildren: d.AcceptsChildren,
		OpeningDebit:    d.OpeningDebit,
		OpeningCredit:   d.OpeningCredit,
		Debit:           decimal.Zero,
		Credit:          decimal.Zero,
		Active:          true,
	}
	if acct.Nature == "" {
		acct.Nature = model.DefaultNature(class)
	}

	if d.Parent != "" {
		parent, err := tx.GetAccountByNumber(ctx, ent.ID, d.Parent)
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, &model.MissingAccountError{Numbers: []string{d.Parent}}
		}
		if err != nil {
			return model.Account{}, err
		}
		if !parent.AcceptsChildren {
			return model.Account{}, &model.InconsistentTreeError{
				Reason: fmt.Sprintf("account %s does not accept children", parent.Number),
			}
		}
		if parent.Class != class {
			return model.Account{}, &model.InconsistentTreeError{
				Reason: fmt.Sprintf("account %s (class %d) cannot hang under %s (class %d)", d.Number, class, parent.Number, parent.Class),
			}
		}
		if err := checkCanParent(ctx, tx, parent); err != nil {
			return model.Account{}, err
		}
		acct.ParentID = parent.ID
	}

	if err := tx.InsertAccount(ctx, &acct); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return model.Account{}, &model.DuplicateNumberError{Kind: "account", Number: d.Number}
		}
		return model.Account{}, err
	}
	return acct, nil
}

// checkCanParent refuses to turn an account into a parent once it holds
// amounts of its own: only leaves carry balances, and a parent's own balance
// would drop out of the leaf sums and block replaying its entries.
func checkCanParent(ctx context.Context, tx *store.Tx, parent model.Account) error {
	fail := func(what string) error {
		return &model.InconsistentTreeError{
			Reason: fmt.Sprintf("account %s %s and cannot take sub-accounts", parent.Number, what),
		}
	}
	if !parent.Debit.IsZero() || !parent.Credit.IsZero() {
		return fail("carries a posted balance")
	}
	if !parent.Opening().IsZero() {
		return fail("carries an opening balance")
	}
	used, err := tx.HasLines(ctx, parent.ID)
	if err != nil {
		return err
	}
	if used {
		return fail("is used by entry lines")
	}
	return nil
}

// CheckNumber verifies an account number has the shape chart expects: digits
// only for French books, "CM" followed by digits for OHADA books, and a
// leading class digit between 1 and 9.
func CheckNumber(chart model.Chart, number string) error {
	digits := number
	if chart == model.ChartOHADA {
		if !strings.HasPrefix(number, model.OHADAPrefix) {
			return &model.InvalidInputError{Problems: []string{fmt.Sprintf("OHADA account %q must start with %s", number, model.OHADAPrefix)}}
		}
		digits = chart.StripPrefix(number)
	}
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return &model.InvalidInputError{Problems: []string{fmt.Sprintf("account number %q must be numeric", number)}}
	}
	if digits[0] == '0' {
		return &model.InvalidInputError{Problems: []string{fmt.Sprintf("account number %q has no class", number)}}
	}
	return nil
}

// Get loads an account by ID.
func (s *Service) Get(ctx context.Context, accountID int64) (model.Account, error) {
	var a model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		a, err = tx.GetAccount(ctx, accountID)
		return err
	})
	return a, err
}

// ByNumber loads an account by number.
func (s *Service) ByNumber(ctx context.Context, enterpriseID int64, number string) (model.Account, error) {
	var a model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		a, err = tx.GetAccountByNumber(ctx, enterpriseID, number)
		return err
	})
	return a, err
}

// List returns the enterprise's accounts ordered by number.
func (s *Service) List(ctx context.Context, enterpriseID int64) ([]model.Account, error) {
	var out []model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx, enterpriseID)
		return err
	})
	return out, err
}

// Tree loads the enterprise's accounts into a Tree valued with Cumulative.
func (s *Service) Tree(ctx context.Context, enterpriseID int64) (*Tree, error) {
	accts, err := s.List(ctx, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	return NewTree(accts)
}

// HasChildren reports whether any account references accountID as its parent.
func (s *Service) HasChildren(ctx context.Context, accountID int64) (bool, error) {
	var has bool
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		has, err = tx.HasChildren(ctx, accountID)
		return err
	})
	return has, err
}

// SetActive retires or reactivates an account. Retired accounts keep their
// balances but cannot receive new lines.
func (s *Service) SetActive(ctx context.Context, enterpriseID int64, number string, active bool) error {
	return s.db.InTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetAccountByNumber(ctx, enterpriseID, number)
		if err != nil {
			return err
		}
		return tx.SetAccountActive(ctx, a.ID, active)
	})
}

// NextSiblingNumber proposes the next free number in a top-level class
// series: "512" with "512000" taken yields "512001", and "512000" when the
// series is empty. Numbering is advisory and uniqueness is enforced on
// insert, so a lookup failure falls back to prefix + "000".
func (s *Service) NextSiblingNumber(ctx context.Context, enterpriseID int64, prefix string) string {
	var existing []string
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		existing, err = tx.AccountNumbersWithPrefix(ctx, enterpriseID, prefix)
		return err
	})
	if err != nil {
		fallback := prefix + "000"
		s.log.Warn("account numbering fell back",
			zap.String("prefix", prefix), zap.String("number", fallback), zap.Error(err))
		return fallback
	}
	return id.NextInSeries(prefix, existing)
}

// NextChildNumber proposes a number for a new child of parentNumber. The
// first child increments the parent's trailing digit and later ones increment
// the highest existing child; a trailing 9 gets a "0" appended rather than
// carrying. A lookup failure falls back to the first-child number.
func (s *Service) NextChildNumber(ctx context.Context, enterpriseID int64, parentNumber string) string {
	var children []string
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		parent, err := tx.GetAccountByNumber(ctx, enterpriseID, parentNumber)
		if err != nil {
			return err
		}
		children, err = tx.ChildNumbers(ctx, parent.ID)
		return err
	})
	if err != nil {
		fallback := id.IncrementTrailingDigit(parentNumber)
		s.log.Warn("account numbering fell back",
			zap.String("parent", parentNumber), zap.String("number", fallback), zap.Error(err))
		return fallback
	}
	if len(children) == 0 {
		return id.IncrementTrailingDigit(parentNumber)
	}
	return id.IncrementTrailingDigit(id.Max(children))
}

// RequireFixed returns the accounts bound to roles, failing with a
// MissingAccountError that names every absent one.
func (s *Service) RequireFixed(ctx context.Context, enterpriseID int64, roles ...string) (map[string]model.Account, error) {
	if len(roles) == 0 {
		roles = Roles
	}
	out := make(map[string]model.Account, len(roles))
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		ent, err := tx.GetEnterprise(ctx, enterpriseID)
		if err != nil {
			return err
		}
		fixed := FixedAccounts(ent.Chart)
		missing := &model.MissingAccountError{}
		for _, role := range roles {
			number, ok := fixed[role]
			if !ok {
				return &model.InvalidInputError{Problems: []string{fmt.Sprintf("unknown account role %q", role)}}
			}
			a, err := tx.GetAccountByNumber(ctx, enterpriseID, number)
			switch {
			case errors.Is(err, model.ErrNotFound) || (err == nil && !a.Active):
				missing.Numbers = append(missing.Numbers, number)
				missing.Roles = append(missing.Roles, role)
			case err != nil:
				return err
			default:
				out[role] = a
			}
		}
		if len(missing.Numbers) > 0 {
			return missing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Seed creates the default chart for an enterprise's chart type.
func (s *Service) Seed(ctx context.Context, enterpriseID int64) (int, error) {
	var chart model.Chart
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		ent, err := tx.GetEnterprise(ctx, enterpriseID)
		chart = ent.Chart
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.ImportDefinitions(ctx, enterpriseID, DefaultChart(chart))
}

// Import reads a CSV chart and creates every account it lists.
func (s *Service) Import(ctx context.Context, enterpriseID int64, r io.Reader) (int, error) {
	defs, err := ReadDefinitions(r)
	if err != nil {
		return 0, err
	}
	return s.ImportDefinitions(ctx, enterpriseID, defs)
}

// ImportDefinitions creates accounts from defs in one transaction. Parents
// may appear after their children; a definition whose parent is neither
// already stored nor part of defs fails the whole import.
func (s *Service) ImportDefinitions(ctx context.Context, enterpriseID int64, defs []Definition) (int, error) {
	ordered, err := parentsFirst(defs)
	if err != nil {
		return 0, err
	}
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		ent, err := tx.GetEnterprise(ctx, enterpriseID)
		if err != nil {
			return err
		}
		for _, d := range ordered {
			if _, err := s.create(ctx, tx, ent, d); err != nil {
				return fmt.Errorf("account %s: %w", d.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("importing chart: %w", err)
	}
	s.log.Info("chart imported", zap.Int64("enterprise", enterpriseID), zap.Int("accounts", len(ordered)))
	return len(ordered), nil
}

// parentsFirst orders defs so that every parent listed in defs precedes its
// children, keeping the input order otherwise.
func parentsFirst(defs []Definition) ([]Definition, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		if _, dup := index[d.Number]; dup {
			return nil, &model.DuplicateNumberError{Kind: "account", Number: d.Number}
		}
		index[d.Number] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(defs))
	out := make([]Definition, 0, len(defs))
	for i := range defs {
		// Climb to the highest unplaced ancestor, then emit downwards.
		var chain []int
		for cur := i; state[cur] != done; {
			if state[cur] == visiting {
				return nil, &model.InconsistentTreeError{Reason: fmt.Sprintf("account %s is its own ancestor", defs[cur].Number)}
			}
			state[cur] = visiting
			chain = append(chain, cur)
			p, ok := index[defs[cur].Parent]
			if defs[cur].Parent == "" || !ok {
				break
			}
			cur = p
		}
		for k := len(chain) - 1; k >= 0; k-- {
			state[chain[k]] = done
			out = append(out, defs[chain[k]])
		}
	}
	return out, nil
}

// Export writes the enterprise's chart as CSV.
func (s *Service) Export(ctx context.Context, enterpriseID int64, w io.Writer) error {
	accts, err := s.List(ctx, enterpriseID)
	if err != nil {
		return err
	}
	tree, err := NewTree(accts)
	if err != nil {
		return err
	}
	defs := make([]Definition, 0, len(accts))
	for _, a := range tree.Accounts() {
		d := Definition{
			Number:          a.Number,
			Label:           a.Label,
			Nature:          a.Nature,
			AcceptsChildren: a.AcceptsChildren,
			OpeningDebit:    a.OpeningDebit,
			OpeningCredit:   a.OpeningCredit,
		}
		if p, ok := tree.Parent(a.ID); ok {
			d.Parent = p.Number
		}
		defs = append(defs, d)
	}
	return WriteDefinitions(w, defs)
}
