package store

import (
	"context"
	"fmt"
)

// LockSequence returns the last number issued for (enterprise, journal) and
// holds the sequence row until the transaction ends, creating it at zero on
// first use. Concurrent callers for the same scope queue behind the lock.
func (t *Tx) LockSequence(ctx context.Context, enterpriseID int64, journal string) (int64, error) {
	_, err := t.exec(ctx, `
		INSERT INTO entry_sequences (enterprise_id, journal, last_value, last_year)
		VALUES (?, ?, 0, 0)
		ON CONFLICT (enterprise_id, journal) DO NOTHING`,
		enterpriseID, journal)
	if err != nil {
		return 0, fmt.Errorf("initializing sequence %s: %w", journal, err)
	}

	var last int64
	err = t.queryRow(ctx,
		`SELECT last_value FROM entry_sequences WHERE enterprise_id = ? AND journal = ?`+t.dialect.ForUpdate(),
		enterpriseID, journal).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("locking sequence %s: %w", journal, err)
	}
	return last, nil
}

// SetSequence records the last number issued for (enterprise, journal).
func (t *Tx) SetSequence(ctx context.Context, enterpriseID int64, journal string, last int64, year int) error {
	_, err := t.exec(ctx,
		`UPDATE entry_sequences SET last_value = ?, last_year = ? WHERE enterprise_id = ? AND journal = ?`,
		last, year, enterpriseID, journal)
	if err != nil {
		return fmt.Errorf("updating sequence %s: %w", journal, err)
	}
	return nil
}
