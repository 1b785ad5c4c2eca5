package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an enterprise, account, period or entry does not exist.
var ErrNotFound = errors.New("not found")

// Error kinds reported alongside user-visible messages.
const (
	KindUnbalancedEntry  = "UnbalancedEntry"
	KindInvalidState     = "InvalidState"
	KindDuplicateNumber  = "DuplicateNumber"
	KindMissingAccount   = "MissingAccount"
	KindInconsistentTree = "InconsistentTree"
	KindInvalidLine      = "InvalidLine"
	KindInvalidInput     = "InvalidInput"
	KindNotFound         = "NotFound"
	KindInternal         = "Internal"
)

// UnbalancedEntryError is returned when an entry's debits and credits differ,
// or when it has nothing to balance.
type UnbalancedEntryError struct {
	EntryNumber string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	if e.Debit.IsZero() && e.Credit.IsZero() {
		return fmt.Sprintf("entry %s has no amount to validate", e.EntryNumber)
	}
	return fmt.Sprintf("entry %s is unbalanced: debits (%s) != credits (%s)",
		e.EntryNumber, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// InvalidStateError is returned for an illegal lifecycle operation.
type InvalidStateError struct {
	Subject   string
	State     string
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Operation, e.Subject, e.State)
}

// DuplicateNumberError is returned when an entry or account number is already taken.
type DuplicateNumberError struct {
	Kind   string // "entry" or "account"
	Number string
}

func (e *DuplicateNumberError) Error() string {
	return fmt.Sprintf("%s number %s already exists", e.Kind, e.Number)
}

// MissingAccountError is returned when a referenced account does not exist.
type MissingAccountError struct {
	Numbers []string
	Roles   []string
}

func (e *MissingAccountError) Error() string {
	if len(e.Roles) > 0 {
		return fmt.Sprintf("missing required accounts: %s (%s)", strings.Join(e.Numbers, ", "), strings.Join(e.Roles, ", "))
	}
	return fmt.Sprintf("missing accounts: %s", strings.Join(e.Numbers, ", "))
}

// InconsistentTreeError reports an account tree or balance sheet that does not hold together.
type InconsistentTreeError struct {
	Reason     string
	Difference decimal.Decimal
}

func (e *InconsistentTreeError) Error() string {
	if e.Difference.IsZero() {
		return "inconsistent account tree: " + e.Reason
	}
	return fmt.Sprintf("inconsistent account tree: %s (difference %s)", e.Reason, e.Difference.StringFixed(2))
}

// InvalidLineError describes a ledger line that breaks the line invariants.
type InvalidLineError struct {
	Position    int
	Account     string
	Description string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("line %d [%s]: %s", e.Position, e.Account, e.Description)
}

// Kind returns the error kind used in user-visible failure messages.
func Kind(err error) string {
	var (
		unbalanced *UnbalancedEntryError
		state      *InvalidStateError
		dup        *DuplicateNumberError
		missing    *MissingAccountError
		tree       *InconsistentTreeError
		line       *InvalidLineError
		input      *InvalidInputError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unbalanced):
		return KindUnbalancedEntry
	case errors.As(err, &state):
		return KindInvalidState
	case errors.As(err, &dup):
		return KindDuplicateNumber
	case errors.As(err, &missing):
		return KindMissingAccount
	case errors.As(err, &tree):
		return KindInconsistentTree
	case errors.As(err, &line):
		return KindInvalidLine
	case errors.As(err, &input):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
