package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/numbering"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// Applier folds a validated entry into account balances.
type Applier interface {
	Apply(ctx context.Context, entryID uuid.UUID) error
}

// Service owns the lifecycle of ledger entries: DRAFT, then VALIDATED, then
// CLOSED. Every operation runs in a single transaction.
type Service struct {
	db          *store.DB
	numbers     *numbering.Authority
	applier     Applier
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	// insert performs one creation attempt; tests replace it to force conflicts.
	insert func(context.Context, CreateParams) (model.Entry, error)
}

// Option configures a Service.
type Option func(*Service)

// WithRetry sets how many times Create tries to obtain a free entry number
// and the base delay between tries. The n-th retry waits n*backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		s.backoff = backoff
	}
}

// WithClock overrides the time source used for validation stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a journal Service. applier may be nil, in which case
// validated entries wait for a later propagation pass.
func NewService(db *store.DB, numbers *numbering.Authority, applier Applier, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		db:          db,
		numbers:     numbers,
		applier:     applier,
		log:         log,
		maxAttempts: 3,
		backoff:     10 * time.Millisecond,
		now:         time.Now,
	}
	s.insert = s.create
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LineParams is one line of an entry being written. Exactly one of Debit and
// Credit must be positive.
type LineParams struct {
	Account string `validate:"required"`
	Label   string `validate:"max=255"`
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// CreateParams holds the fields of a new entry. Number is issued by the
// numbering authority when empty.
type CreateParams struct {
	EnterpriseID int64        `validate:"required"`
	Journal      string       `validate:"journal"`
	Number       string       `validate:"max=32"`
	Date         time.Time    `validate:"required"`
	Label        string       `validate:"required,max=255"`
	Reference    string       `validate:"max=64"`
	User         string       `validate:"required"`
	Lines        []LineParams `validate:"dive"`
}

// UpdateParams replaces the editable fields and the whole line set of a
// draft entry.
type UpdateParams struct {
	EntryID   uuid.UUID    `validate:"required"`
	Date      time.Time    `validate:"required"`
	Label     string       `validate:"required,max=255"`
	Reference string       `validate:"max=64"`
	Lines     []LineParams `validate:"dive"`
}

// Create records a new DRAFT entry with its lines. Drafts may be unbalanced;
// balance is enforced by Validate. When the number is issued automatically
// and collides with a concurrent writer, Create retries before giving up
// with a DuplicateNumberError.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Entry, error) {
	if err := model.Validate(p); err != nil {
		return model.Entry{}, err
	}

	var (
		lastErr    error
		lastNumber string
	)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			s.log.Info("retrying entry creation",
				zap.String("journal", p.Journal), zap.Int("attempt", attempt+1), zap.Error(lastErr))
			if err := sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
				return model.Entry{}, err
			}
		}

		e, err := s.insert(ctx, p)
		if err == nil {
			return e, nil
		}
		lastNumber = e.Number
		if !retryable(err) {
			return model.Entry{}, fmt.Errorf("creating entry: %w", err)
		}
		if p.Number != "" {
			return model.Entry{}, &model.DuplicateNumberError{Kind: "entry", Number: p.Number}
		}
		lastErr = err
	}
	return model.Entry{}, &model.DuplicateNumberError{Kind: "entry", Number: lastNumber}
}

func (s *Service) create(ctx context.Context, p CreateParams) (model.Entry, error) {
	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		period, err := openPeriodFor(ctx, tx, p.EnterpriseID, p.Date, "create entry in")
		if err != nil {
			return err
		}
		lines, err := resolveLines(ctx, tx, p.EnterpriseID, p.Lines)
		if err != nil {
			return err
		}

		number := p.Number
		if number == "" {
			number, err = s.numbers.NextInTx(ctx, tx, p.EnterpriseID, p.Journal, p.Date.Year())
			if err != nil {
				return err
			}
		} else {
			taken, err := tx.EntryNumberExists(ctx, p.EnterpriseID, number)
			if err != nil {
				return err
			}
			if taken {
				return &model.DuplicateNumberError{Kind: "entry", Number: number}
			}
		}

		e = model.Entry{
			EnterpriseID: p.EnterpriseID,
			PeriodID:     period.ID,
			Number:       number,
			Journal:      p.Journal,
			Date:         p.Date,
			Label:        p.Label,
			Reference:    p.Reference,
			Status:       model.StatusDraft,
			CreatedBy:    p.User,
			Lines:        lines,
		}
		return tx.InsertEntry(ctx, &e)
	})
	// The entry is returned on failure too so that the caller can report
	// which number collided.
	return e, err
}

func retryable(err error) bool {
	return errors.Is(err, store.ErrUniqueViolation) || errors.Is(err, store.ErrSerialization)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Update rewrites a DRAFT entry, replacing its whole line set.
func (s *Service) Update(ctx context.Context, p UpdateParams) (model.Entry, error) {
	if err := model.Validate(p); err != nil {
		return model.Entry{}, err
	}
	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.LockEntry(ctx, p.EntryID)
		if err != nil {
			return err
		}
		if !e.Mutable() {
			return &model.InvalidStateError{Subject: "entry " + e.Number, State: string(e.Status), Operation: "update"}
		}
		period, err := openPeriodFor(ctx, tx, e.EnterpriseID, p.Date, "move entry into")
		if err != nil {
			return err
		}
		lines, err := resolveLines(ctx, tx, e.EnterpriseID, p.Lines)
		if err != nil {
			return err
		}

		e.PeriodID = period.ID
		e.Date = p.Date
		e.Label = p.Label
		e.Reference = p.Reference
		e.Lines = lines
		if err := tx.UpdateEntryHeader(ctx, e); err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, e.ID, e.Lines)
	})
	if err != nil {
		return model.Entry{}, fmt.Errorf("updating entry: %w", err)
	}
	return e, nil
}

// Delete removes a DRAFT entry and all of its lines.
func (s *Service) Delete(ctx context.Context, entryID uuid.UUID) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		e, err := tx.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if !e.Mutable() {
			return &model.InvalidStateError{Subject: "entry " + e.Number, State: string(e.Status), Operation: "delete"}
		}
		return tx.DeleteEntry(ctx, e.ID)
	})
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// Get loads an entry with its lines.
func (s *Service) Get(ctx context.Context, entryID uuid.UUID) (model.Entry, error) {
	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.GetEntry(ctx, entryID)
		return err
	})
	return e, err
}

// GetByNumber loads an entry by its number.
func (s *Service) GetByNumber(ctx context.Context, enterpriseID int64, number string) (model.Entry, error) {
	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.GetEntryByNumber(ctx, enterpriseID, number)
		return err
	})
	return e, err
}

// List returns the entries matching f ordered by date and number.
func (s *Service) List(ctx context.Context, f store.EntryFilter) ([]model.Entry, error) {
	var out []model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ListEntries(ctx, f)
		return err
	})
	return out, err
}
