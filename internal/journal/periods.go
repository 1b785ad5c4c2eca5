package journal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// OpenPeriod creates an OPEN financial period covering [start, end]. Periods
// of one enterprise never overlap.
func (s *Service) OpenPeriod(ctx context.Context, enterpriseID int64, start, end time.Time) (model.Period, error) {
	p := model.Period{EnterpriseID: enterpriseID, Start: start, End: end, Status: model.PeriodOpen}
	if end.Before(start) {
		return model.Period{}, &model.InvalidInputError{Problems: []string{
			fmt.Sprintf("period ends (%s) before it starts (%s)", end.Format(time.DateOnly), start.Format(time.DateOnly)),
		}}
	}
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetEnterprise(ctx, enterpriseID); err != nil {
			return err
		}
		existing, err := tx.ListPeriods(ctx, enterpriseID)
		if err != nil {
			return err
		}
		for _, o := range existing {
			if p.Overlaps(o) {
				return &model.InvalidInputError{Problems: []string{"overlaps " + periodName(o)}}
			}
		}
		return tx.InsertPeriod(ctx, &p)
	})
	if err != nil {
		return model.Period{}, fmt.Errorf("opening period: %w", err)
	}
	return p, nil
}

// Periods lists an enterprise's periods by start date.
func (s *Service) Periods(ctx context.Context, enterpriseID int64) ([]model.Period, error) {
	var out []model.Period
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListPeriods(ctx, enterpriseID)
		return err
	})
	return out, err
}

// PeriodFor returns the period containing d.
func (s *Service) PeriodFor(ctx context.Context, enterpriseID int64, d time.Time) (model.Period, error) {
	var p model.Period
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		p, err = tx.PeriodForDate(ctx, enterpriseID, d)
		return err
	})
	return p, err
}

// ClosePeriod closes every VALIDATED entry of the period and then the period
// itself. It refuses while DRAFT entries remain: they must be validated or
// deleted first.
func (s *Service) ClosePeriod(ctx context.Context, periodID int64) (int, error) {
	var closed int
	var p model.Period
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		p, err = tx.LockPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != model.PeriodOpen {
			return &model.InvalidStateError{Subject: periodName(p), State: string(p.Status), Operation: "close"}
		}

		drafts, err := tx.ListEntries(ctx, store.EntryFilter{
			EnterpriseID: p.EnterpriseID,
			PeriodID:     p.ID,
			Statuses:     []model.EntryStatus{model.StatusDraft},
		})
		if err != nil {
			return err
		}
		if len(drafts) > 0 {
			return &model.InvalidStateError{
				Subject:   fmt.Sprintf("%s holding %d draft entries (first %s)", periodName(p), len(drafts), drafts[0].Number),
				State:     string(p.Status),
				Operation: "close",
			}
		}

		validated, err := tx.ListEntries(ctx, store.EntryFilter{
			EnterpriseID: p.EnterpriseID,
			PeriodID:     p.ID,
			Statuses:     []model.EntryStatus{model.StatusValidated},
		})
		if err != nil {
			return err
		}
		for _, e := range validated {
			if err := closeEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		closed = len(validated)
		return tx.SetPeriodStatus(ctx, p.ID, model.PeriodClosed)
	})
	if err != nil {
		return 0, fmt.Errorf("closing period: %w", err)
	}
	s.log.Info("period closed", zap.String("period", periodName(p)), zap.Int("entries", closed))
	return closed, nil
}
