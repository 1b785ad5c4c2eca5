package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a ledger entry.
type EntryStatus string

const (
	StatusDraft     EntryStatus = "DRAFT"
	StatusValidated EntryStatus = "VALIDATED"
	StatusClosed    EntryStatus = "CLOSED"
)

// Entry is a journal entry: a dated, numbered group of lines that must balance
// before it can be validated.
type Entry struct {
	ID           uuid.UUID
	EnterpriseID int64
	PeriodID     int64
	Number       string
	Journal      string
	Date         time.Time
	Label        string
	Reference    string
	Status       EntryStatus
	CreatedBy    string
	ValidatedBy  string
	ValidatedAt  *time.Time
	Lines        []Line
}

// Line is one side of a double entry against a leaf account.
type Line struct {
	ID            uuid.UUID
	EntryID       uuid.UUID
	Position      int
	AccountID     int64
	AccountNumber string
	Label         string
	Debit         decimal.Decimal // zero if credit side
	Credit        decimal.Decimal // zero if debit side
}

// Totals returns the sum of debits and credits over all lines.
func (e Entry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Mutable reports whether the entry can still be edited or deleted.
func (e Entry) Mutable() bool {
	return e.Status == StatusDraft
}
