// Package numbering issues journal entry numbers.
package numbering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/id"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// maxSeq is the largest sequence that fits the fixed-width number format.
const maxSeq = 999999

// Authority hands out entry numbers of the form <journal><6 digits>, unique
// within (enterprise, journal). Issuance holds the sequence row lock until the
// surrounding transaction ends, so concurrent callers for the same scope are
// served one after the other.
type Authority struct {
	db  *store.DB
	log *zap.Logger
}

// New creates an Authority. A nil logger discards output.
func New(db *store.DB, log *zap.Logger) *Authority {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authority{db: db, log: log}
}

// Next issues a number in its own transaction.
func (a *Authority) Next(ctx context.Context, enterpriseID int64, journal string, year int) (string, error) {
	var number string
	err := a.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		number, err = a.NextInTx(ctx, tx, enterpriseID, journal, year)
		return err
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// NextInTx issues a number inside tx. The number is only consumed if tx
// commits. Numbers already taken by entries carrying a hand-picked number
// are skipped.
func (a *Authority) NextInTx(ctx context.Context, tx *store.Tx, enterpriseID int64, journal string, year int) (string, error) {
	if !id.ValidJournal(journal) {
		return "", fmt.Errorf("invalid journal code %q", journal)
	}
	seq, err := tx.LockSequence(ctx, enterpriseID, journal)
	if err != nil {
		return "", err
	}

	var number string
	for {
		seq++
		if seq > maxSeq {
			return "", fmt.Errorf("journal %s has run out of entry numbers", journal)
		}
		number = id.FormatEntryNumber(journal, seq)
		taken, err := tx.EntryNumberExists(ctx, enterpriseID, number)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		a.log.Debug("skipping taken entry number", zap.String("number", number))
	}

	if err := tx.SetSequence(ctx, enterpriseID, journal, seq, year); err != nil {
		return "", err
	}
	return number, nil
}
