package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// InsertEnterprise creates an enterprise and sets its ID.
func (t *Tx) InsertEnterprise(ctx context.Context, e *model.Enterprise) error {
	err := t.queryRow(ctx,
		`INSERT INTO enterprises (name, chart) VALUES (?, ?) RETURNING id`,
		e.Name, string(e.Chart)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting enterprise: %w", err)
	}
	return nil
}

// GetEnterprise loads an enterprise by ID.
func (t *Tx) GetEnterprise(ctx context.Context, id int64) (model.Enterprise, error) {
	var e model.Enterprise
	var chart string
	err := t.queryRow(ctx, `SELECT id, name, chart FROM enterprises WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &chart)
	if err != nil {
		return model.Enterprise{}, notFound(err, fmt.Sprintf("enterprise %d", id))
	}
	e.Chart = model.Chart(chart)
	return e, nil
}

const accountColumns = `id, enterprise_id, number, label, nature, class, parent_id, accepts_children,
	opening_debit, opening_credit, debit, credit, active`

func scanAccount(s scanner) (model.Account, error) {
	var a model.Account
	var nature string
	var parent sql.NullInt64
	err := s.Scan(&a.ID, &a.EnterpriseID, &a.Number, &a.Label, &nature, &a.Class, &parent,
		&a.AcceptsChildren, &a.OpeningDebit, &a.OpeningCredit, &a.Debit, &a.Credit, &a.Active)
	if err != nil {
		return model.Account{}, err
	}
	a.Nature = model.Nature(nature)
	a.ParentID = parent.Int64
	return a, nil
}

// InsertAccount creates an account and sets its ID.
func (t *Tx) InsertAccount(ctx context.Context, a *model.Account) error {
	err := t.queryRow(ctx, `
		INSERT INTO accounts (enterprise_id, number, label, nature, class, parent_id, accepts_children,
			opening_debit, opening_credit, debit, credit, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.EnterpriseID, a.Number, a.Label, string(a.Nature), a.Class, nullID(a.ParentID), a.AcceptsChildren,
		a.OpeningDebit, a.OpeningCredit, a.Debit, a.Credit, a.Active).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.Number, t.dialect.classify(err))
	}
	return nil
}

// GetAccount loads an account by ID.
func (t *Tx) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	a, err := scanAccount(t.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return model.Account{}, notFound(err, fmt.Sprintf("account %d", id))
	}
	return a, nil
}

// LockAccount loads an account and, where the dialect supports it, locks its row
// until the transaction ends.
func (t *Tx) LockAccount(ctx context.Context, id int64) (model.Account, error) {
	a, err := scanAccount(t.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`+t.dialect.ForUpdate(), id))
	if err != nil {
		return model.Account{}, notFound(err, fmt.Sprintf("account %d", id))
	}
	return a, nil
}

// GetAccountByNumber loads an account by its number within an enterprise.
func (t *Tx) GetAccountByNumber(ctx context.Context, enterpriseID int64, number string) (model.Account, error) {
	a, err := scanAccount(t.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE enterprise_id = ? AND number = ?`, enterpriseID, number))
	if err != nil {
		return model.Account{}, notFound(err, "account "+number)
	}
	return a, nil
}

// ListAccounts returns every account of an enterprise ordered by number.
func (t *Tx) ListAccounts(ctx context.Context, enterpriseID int64) ([]model.Account, error) {
	rows, err := t.query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE enterprise_id = ? ORDER BY number`, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountNumbersWithPrefix returns the numbers of all accounts starting with prefix.
func (t *Tx) AccountNumbersWithPrefix(ctx context.Context, enterpriseID int64, prefix string) ([]string, error) {
	return t.numbers(ctx,
		`SELECT number FROM accounts WHERE enterprise_id = ? AND number LIKE ?`, enterpriseID, prefix+"%")
}

// ChildNumbers returns the numbers of the accounts directly under parentID.
func (t *Tx) ChildNumbers(ctx context.Context, parentID int64) ([]string, error) {
	return t.numbers(ctx, `SELECT number FROM accounts WHERE parent_id = ?`, parentID)
}

func (t *Tx) numbers(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying account numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning account number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// HasChildren reports whether any account references id as its parent.
func (t *Tx) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.queryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE parent_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking children of account %d: %w", id, err)
	}
	return exists, nil
}

// HasLines reports whether any entry line, in whatever status, targets the
// account.
func (t *Tx) HasLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.queryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entry_lines WHERE account_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking lines of account %d: %w", id, err)
	}
	return exists, nil
}

// SetAccountBalance overwrites an account's cumulative self balance.
func (t *Tx) SetAccountBalance(ctx context.Context, id int64, debit, credit decimal.Decimal) error {
	_, err := t.exec(ctx, `UPDATE accounts SET debit = ?, credit = ? WHERE id = ?`, debit, credit, id)
	if err != nil {
		return fmt.Errorf("updating balance of account %d: %w", id, err)
	}
	return nil
}

// SetAccountActive flags an account as usable or retired.
func (t *Tx) SetAccountActive(ctx context.Context, id int64, active bool) error {
	_, err := t.exec(ctx, `UPDATE accounts SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating account %d: %w", id, err)
	}
	return nil
}
