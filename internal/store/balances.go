package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// MarkApplied records that an entry's lines have been folded into account
// balances. It returns false when the entry had already been marked.
func (t *Tx) MarkApplied(ctx context.Context, entryID uuid.UUID, at time.Time) (bool, error) {
	res, err := t.exec(ctx,
		`INSERT INTO applied_entries (entry_id, applied_at) VALUES (?, ?) ON CONFLICT (entry_id) DO NOTHING`,
		entryID, formatTimestamp(at))
	if err != nil {
		return false, fmt.Errorf("marking entry %s applied: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking entry %s applied: %w", entryID, err)
	}
	return n == 1, nil
}

// IsApplied reports whether an entry has been folded into balances.
func (t *Tx) IsApplied(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var exists bool
	err := t.queryRow(ctx, `SELECT EXISTS(SELECT 1 FROM applied_entries WHERE entry_id = ?)`, entryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking entry %s: %w", entryID, err)
	}
	return exists, nil
}

// UnappliedEntryIDs lists validated or closed entries whose balances have not
// been propagated yet, oldest first.
func (t *Tx) UnappliedEntryIDs(ctx context.Context, enterpriseID int64) ([]uuid.UUID, error) {
	rows, err := t.query(ctx, `
		SELECT e.id FROM entries e
		LEFT JOIN applied_entries a ON a.entry_id = e.id
		WHERE e.enterprise_id = ? AND e.status IN (?, ?) AND a.entry_id IS NULL
		ORDER BY e.entry_date, e.number`,
		enterpriseID, string(model.StatusValidated), string(model.StatusClosed))
	if err != nil {
		return nil, fmt.Errorf("querying unapplied entries: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning entry id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddPeriodBalance adds debit and credit to an account's movement for a period.
func (t *Tx) AddPeriodBalance(ctx context.Context, accountID, periodID int64, debit, credit decimal.Decimal) error {
	var cur model.Balance
	err := t.queryRow(ctx,
		`SELECT debit, credit FROM account_balances WHERE account_id = ? AND period_id = ?`+t.dialect.ForUpdate(),
		accountID, periodID).Scan(&cur.Debit, &cur.Credit)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = t.exec(ctx,
			`INSERT INTO account_balances (account_id, period_id, debit, credit) VALUES (?, ?, ?, ?)`,
			accountID, periodID, debit, credit)
	case err == nil:
		cur = cur.Add(model.Balance{Debit: debit, Credit: credit})
		_, err = t.exec(ctx,
			`UPDATE account_balances SET debit = ?, credit = ? WHERE account_id = ? AND period_id = ?`,
			cur.Debit, cur.Credit, accountID, periodID)
	}
	if err != nil {
		return fmt.Errorf("updating balance of account %d for period %d: %w", accountID, periodID, err)
	}
	return nil
}

// PeriodBalances returns the per-account movements recorded for a period,
// keyed by account ID. Accounts without movement are absent.
func (t *Tx) PeriodBalances(ctx context.Context, enterpriseID, periodID int64) (map[int64]model.Balance, error) {
	rows, err := t.query(ctx, `
		SELECT b.account_id, b.debit, b.credit
		FROM account_balances b
		JOIN accounts a ON a.id = b.account_id
		WHERE a.enterprise_id = ? AND b.period_id = ?`,
		enterpriseID, periodID)
	if err != nil {
		return nil, fmt.Errorf("querying period balances: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]model.Balance)
	for rows.Next() {
		var id int64
		var b model.Balance
		if err := rows.Scan(&id, &b.Debit, &b.Credit); err != nil {
			return nil, fmt.Errorf("scanning period balance: %w", err)
		}
		out[id] = b
	}
	return out, rows.Err()
}

// ResetBalances clears every propagated amount of an enterprise: cumulative
// account balances, period movements and the applied-entry journal.
func (t *Tx) ResetBalances(ctx context.Context, enterpriseID int64) error {
	stmts := []string{
		`DELETE FROM applied_entries WHERE entry_id IN (SELECT id FROM entries WHERE enterprise_id = ?)`,
		`DELETE FROM account_balances WHERE account_id IN (SELECT id FROM accounts WHERE enterprise_id = ?)`,
		`UPDATE accounts SET debit = '0', credit = '0' WHERE enterprise_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := t.exec(ctx, stmt, enterpriseID); err != nil {
			return fmt.Errorf("resetting balances: %w", err)
		}
	}
	return nil
}
