package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/grandlivre/internal/model"
)

const entryColumns = `e.id, e.enterprise_id, e.period_id, e.number, e.journal, e.entry_date, e.label,
	e.reference, e.status, e.created_by, e.validated_by, e.validated_at`

func scanEntry(s scanner) (model.Entry, error) {
	var e model.Entry
	var date, validatedAt dbTime
	var status string
	err := s.Scan(&e.ID, &e.EnterpriseID, &e.PeriodID, &e.Number, &e.Journal, &date, &e.Label,
		&e.Reference, &status, &e.CreatedBy, &e.ValidatedBy, &validatedAt)
	if err != nil {
		return model.Entry{}, err
	}
	e.Date = date.Time
	e.Status = model.EntryStatus(status)
	e.ValidatedAt = validatedAt.ptr()
	return e, nil
}

// EntryNumberExists reports whether number is already used within the enterprise.
func (t *Tx) EntryNumberExists(ctx context.Context, enterpriseID int64, number string) (bool, error) {
	var exists bool
	err := t.queryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM entries WHERE enterprise_id = ? AND number = ?)`,
		enterpriseID, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking entry number %s: %w", number, err)
	}
	return exists, nil
}

// InsertEntry persists an entry header and all of its lines. IDs are assigned
// when missing.
func (t *Tx) InsertEntry(ctx context.Context, e *model.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := t.exec(ctx, `
		INSERT INTO entries (id, enterprise_id, period_id, number, journal, entry_date, label,
			reference, status, created_by, validated_by, validated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EnterpriseID, e.PeriodID, e.Number, e.Journal, formatDate(e.Date), e.Label,
		e.Reference, string(e.Status), e.CreatedBy, e.ValidatedBy, nullTimestamp(e.ValidatedAt))
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w", e.Number, t.dialect.classify(err))
	}
	return t.insertLines(ctx, e.ID, e.Lines)
}

func (t *Tx) insertLines(ctx context.Context, entryID uuid.UUID, lines []model.Line) error {
	for i := range lines {
		l := &lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.EntryID = entryID
		l.Position = i + 1
		_, err := t.exec(ctx, `
			INSERT INTO entry_lines (id, entry_id, position, account_id, label, debit, credit)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.EntryID, l.Position, l.AccountID, l.Label, l.Debit, l.Credit)
		if err != nil {
			return fmt.Errorf("inserting line %d: %w", l.Position, err)
		}
	}
	return nil
}

// GetEntry loads an entry with its lines.
func (t *Tx) GetEntry(ctx context.Context, id uuid.UUID) (model.Entry, error) {
	return t.getEntry(ctx, id, "")
}

// LockEntry loads an entry with its lines and locks the header row where supported.
func (t *Tx) LockEntry(ctx context.Context, id uuid.UUID) (model.Entry, error) {
	return t.getEntry(ctx, id, t.dialect.ForUpdate())
}

// GetEntryByNumber loads an entry by its number within an enterprise.
func (t *Tx) GetEntryByNumber(ctx context.Context, enterpriseID int64, number string) (model.Entry, error) {
	e, err := scanEntry(t.queryRow(ctx,
		`SELECT `+entryColumns+` FROM entries e WHERE e.enterprise_id = ? AND e.number = ?`, enterpriseID, number))
	if err != nil {
		return model.Entry{}, notFound(err, "entry "+number)
	}
	if e.Lines, err = t.lines(ctx, e.ID); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}

func (t *Tx) getEntry(ctx context.Context, id uuid.UUID, lock string) (model.Entry, error) {
	e, err := scanEntry(t.queryRow(ctx, `SELECT `+entryColumns+` FROM entries e WHERE e.id = ?`+lock, id))
	if err != nil {
		return model.Entry{}, notFound(err, "entry "+id.String())
	}
	if e.Lines, err = t.lines(ctx, e.ID); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}

func (t *Tx) lines(ctx context.Context, entryID uuid.UUID) ([]model.Line, error) {
	rows, err := t.query(ctx, `
		SELECT l.id, l.entry_id, l.position, l.account_id, a.number, l.label, l.debit, l.credit
		FROM entry_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.entry_id = ?
		ORDER BY l.position`, entryID)
	if err != nil {
		return nil, fmt.Errorf("querying lines of entry %s: %w", entryID, err)
	}
	defer rows.Close()

	var lines []model.Line
	for rows.Next() {
		var l model.Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.Position, &l.AccountID, &l.AccountNumber,
			&l.Label, &l.Debit, &l.Credit); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateEntryHeader rewrites the editable header fields of an entry.
func (t *Tx) UpdateEntryHeader(ctx context.Context, e model.Entry) error {
	_, err := t.exec(ctx, `
		UPDATE entries SET period_id = ?, entry_date = ?, label = ?, reference = ?
		WHERE id = ?`,
		e.PeriodID, formatDate(e.Date), e.Label, e.Reference, e.ID)
	if err != nil {
		return fmt.Errorf("updating entry %s: %w", e.Number, err)
	}
	return nil
}

// ReplaceLines deletes an entry's lines and inserts the given set.
func (t *Tx) ReplaceLines(ctx context.Context, entryID uuid.UUID, lines []model.Line) error {
	if _, err := t.exec(ctx, `DELETE FROM entry_lines WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("deleting lines of entry %s: %w", entryID, err)
	}
	return t.insertLines(ctx, entryID, lines)
}

// DeleteEntry removes an entry and all of its lines.
func (t *Tx) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	if _, err := t.exec(ctx, `DELETE FROM entry_lines WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("deleting lines of entry %s: %w", id, err)
	}
	if _, err := t.exec(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	return nil
}

// SetEntryStatus moves an entry to a new status, recording who validated it and when.
func (t *Tx) SetEntryStatus(ctx context.Context, id uuid.UUID, status model.EntryStatus, by string, at *time.Time) error {
	_, err := t.exec(ctx, `
		UPDATE entries SET status = ?,
			validated_by = CASE WHEN ? = '' THEN validated_by ELSE ? END,
			validated_at = COALESCE(?, validated_at)
		WHERE id = ?`,
		string(status), by, by, nullTimestamp(at), id)
	if err != nil {
		return fmt.Errorf("updating status of entry %s: %w", id, err)
	}
	return nil
}

// EntryFilter narrows ListEntries. Zero fields do not filter.
type EntryFilter struct {
	EnterpriseID int64
	PeriodID     int64
	From         time.Time
	To           time.Time
	AccountID    int64
	Journal      string
	Statuses     []model.EntryStatus
}

// ListEntries returns the entries matching f, with their lines, ordered by
// date then number.
func (t *Tx) ListEntries(ctx context.Context, f EntryFilter) ([]model.Entry, error) {
	var where []string
	var args []any

	where = append(where, "e.enterprise_id = ?")
	args = append(args, f.EnterpriseID)
	if f.PeriodID != 0 {
		where = append(where, "e.period_id = ?")
		args = append(args, f.PeriodID)
	}
	if !f.From.IsZero() {
		where = append(where, "e.entry_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "e.entry_date <= ?")
		args = append(args, formatDate(f.To))
	}
	if f.AccountID != 0 {
		where = append(where, "EXISTS(SELECT 1 FROM entry_lines l WHERE l.entry_id = e.id AND l.account_id = ?)")
		args = append(args, f.AccountID)
	}
	if f.Journal != "" {
		where = append(where, "e.journal = ?")
		args = append(args, f.Journal)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "e.status IN ("+strings.Join(marks, ", ")+")")
	}

	rows, err := t.query(ctx, `SELECT `+entryColumns+` FROM entries e WHERE `+
		strings.Join(where, " AND ")+` ORDER BY e.entry_date, e.number`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Lines are loaded once the header cursor is closed: pgx cannot run a
	// second query on a connection that is still streaming rows.
	for i := range entries {
		if entries[i].Lines, err = t.lines(ctx, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
