package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cleared-dev/grandlivre/internal/model"
)

const periodColumns = `id, enterprise_id, start_date, end_date, status`

func scanPeriod(s scanner) (model.Period, error) {
	var p model.Period
	var start, end dbTime
	var status string
	if err := s.Scan(&p.ID, &p.EnterpriseID, &start, &end, &status); err != nil {
		return model.Period{}, err
	}
	p.Start, p.End, p.Status = start.Time, end.Time, model.PeriodStatus(status)
	return p, nil
}

// InsertPeriod creates a financial period and sets its ID.
func (t *Tx) InsertPeriod(ctx context.Context, p *model.Period) error {
	err := t.queryRow(ctx,
		`INSERT INTO periods (enterprise_id, start_date, end_date, status) VALUES (?, ?, ?, ?) RETURNING id`,
		p.EnterpriseID, formatDate(p.Start), formatDate(p.End), string(p.Status)).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("inserting period: %w", err)
	}
	return nil
}

// GetPeriod loads a period by ID.
func (t *Tx) GetPeriod(ctx context.Context, id int64) (model.Period, error) {
	p, err := scanPeriod(t.queryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = ?`, id))
	if err != nil {
		return model.Period{}, notFound(err, fmt.Sprintf("period %d", id))
	}
	return p, nil
}

// LockPeriod loads a period and locks its row where supported.
func (t *Tx) LockPeriod(ctx context.Context, id int64) (model.Period, error) {
	p, err := scanPeriod(t.queryRow(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE id = ?`+t.dialect.ForUpdate(), id))
	if err != nil {
		return model.Period{}, notFound(err, fmt.Sprintf("period %d", id))
	}
	return p, nil
}

// ListPeriods returns an enterprise's periods ordered by start date.
func (t *Tx) ListPeriods(ctx context.Context, enterpriseID int64) ([]model.Period, error) {
	rows, err := t.query(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE enterprise_id = ? ORDER BY start_date`, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("querying periods: %w", err)
	}
	defer rows.Close()

	var periods []model.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// PeriodForDate returns the period of an enterprise containing d.
func (t *Tx) PeriodForDate(ctx context.Context, enterpriseID int64, d time.Time) (model.Period, error) {
	p, err := scanPeriod(t.queryRow(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE enterprise_id = ? AND start_date <= ? AND end_date >= ?`,
		enterpriseID, formatDate(d), formatDate(d)))
	if err != nil {
		return model.Period{}, notFound(err, "period for "+formatDate(d))
	}
	return p, nil
}

// SetPeriodStatus updates a period's status.
func (t *Tx) SetPeriodStatus(ctx context.Context, id int64, status model.PeriodStatus) error {
	_, err := t.exec(ctx, `UPDATE periods SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating period %d: %w", id, err)
	}
	return nil
}
