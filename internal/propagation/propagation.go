// Package propagation folds validated entries into account balances.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// Service applies validated entries to leaf accounts. Each entry is applied
// at most once: the applied_entries ledger records it in the same
// transaction as the balance updates, so a repeated Apply is a no-op.
// Parent accounts are never written; their totals come from tree
// consolidation at read time.
type Service struct {
	db  *store.DB
	log *zap.Logger
	now func() time.Time
}

// New creates a propagation Service. A nil logger discards output.
func New(db *store.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log, now: time.Now}
}

// Apply adds the lines of a VALIDATED or CLOSED entry to the cumulative and
// per-period balances of their accounts.
func (s *Service) Apply(ctx context.Context, entryID uuid.UUID) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		_, err := s.apply(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return fmt.Errorf("propagating entry %s: %w", entryID, err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, tx *store.Tx, entryID uuid.UUID) (bool, error) {
	e, err := tx.LockEntry(ctx, entryID)
	if err != nil {
		return false, err
	}
	if e.Status != model.StatusValidated && e.Status != model.StatusClosed {
		return false, &model.InvalidStateError{Subject: "entry " + e.Number, State: string(e.Status), Operation: "propagate"}
	}
	first, err := tx.MarkApplied(ctx, e.ID, s.now())
	if err != nil {
		return false, err
	}
	if !first {
		s.log.Debug("entry already propagated", zap.String("number", e.Number))
		return false, nil
	}

	for _, l := range e.Lines {
		a, err := tx.LockAccount(ctx, l.AccountID)
		if err != nil {
			return false, err
		}
		parent, err := tx.HasChildren(ctx, a.ID)
		if err != nil {
			return false, err
		}
		if parent {
			return false, &model.InconsistentTreeError{
				Reason: fmt.Sprintf("entry %s posts to %s which has sub-accounts", e.Number, a.Number),
			}
		}
		if err := tx.SetAccountBalance(ctx, a.ID, a.Debit.Add(l.Debit), a.Credit.Add(l.Credit)); err != nil {
			return false, err
		}
		if err := tx.AddPeriodBalance(ctx, a.ID, e.PeriodID, l.Debit, l.Credit); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ApplyPending applies every validated entry of the enterprise that has not
// been propagated yet, each in its own transaction. It returns how many were
// applied; failures are collected and do not stop the pass.
func (s *Service) ApplyPending(ctx context.Context, enterpriseID int64) (int, error) {
	var ids []uuid.UUID
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		ids, err = tx.UnappliedEntryIDs(ctx, enterpriseID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("listing pending entries: %w", err)
	}

	applied := 0
	var errs []error
	for _, entryID := range ids {
		if err := s.Apply(ctx, entryID); err != nil {
			s.log.Error("pending propagation failed", zap.String("entry_id", entryID.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		applied++
	}
	if applied > 0 {
		s.log.Info("pending entries propagated", zap.Int64("enterprise", enterpriseID), zap.Int("entries", applied))
	}
	return applied, errors.Join(errs...)
}

// Resync discards every propagated balance of the enterprise and replays all
// VALIDATED and CLOSED entries in one transaction.
func (s *Service) Resync(ctx context.Context, enterpriseID int64) (int, error) {
	applied := 0
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.ResetBalances(ctx, enterpriseID); err != nil {
			return err
		}
		ids, err := tx.UnappliedEntryIDs(ctx, enterpriseID)
		if err != nil {
			return err
		}
		for _, entryID := range ids {
			if _, err := s.apply(ctx, tx, entryID); err != nil {
				return fmt.Errorf("replaying entry %s: %w", entryID, err)
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("resyncing balances: %w", err)
	}
	s.log.Info("balances rebuilt", zap.Int64("enterprise", enterpriseID), zap.Int("entries", applied))
	return applied, nil
}
