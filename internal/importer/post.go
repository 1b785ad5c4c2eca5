package importer

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/journal"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

// DefaultJournal is the journal code bank movements are written to.
const DefaultJournal = "BQ"

// EntryWriter is the part of the journal service the Poster needs.
type EntryWriter interface {
	Create(ctx context.Context, p journal.CreateParams) (model.Entry, error)
	List(ctx context.Context, f store.EntryFilter) ([]model.Entry, error)
}

// Options says where imported movements are posted. Bank is the bank
// account the statement belongs to and Counter the account each movement is
// balanced against until someone reclassifies it.
type Options struct {
	EnterpriseID int64
	Journal      string
	Bank         string
	Counter      string
	User         string
}

// Result reports what a run did. Skipped holds movements already imported
// under the same reference and movements of zero amount.
type Result struct {
	Created []model.Entry
	Skipped []Transaction
}

func (r *Result) merge(o Result) {
	r.Created = append(r.Created, o.Created...)
	r.Skipped = append(r.Skipped, o.Skipped...)
}

// Poster turns bank transactions into draft entries.
type Poster struct {
	entries EntryWriter
	log     *zap.Logger
}

// NewPoster creates a Poster writing through entries.
func NewPoster(entries EntryWriter, log *zap.Logger) *Poster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poster{entries: entries, log: log}
}

// Post records one two-line draft entry per transaction. Money received
// debits the bank account and money paid out credits it. A transaction whose
// reference was already in the journal before the run is skipped, so a
// statement can be imported again after a partial failure.
func (p *Poster) Post(ctx context.Context, opts Options, txns []Transaction) (Result, error) {
	if opts.Journal == "" {
		opts.Journal = DefaultJournal
	}
	if opts.Bank == "" || opts.Counter == "" {
		return Result{}, &model.InvalidInputError{Problems: []string{"bank and counterpart accounts are required"}}
	}

	existing, err := p.entries.List(ctx, store.EntryFilter{EnterpriseID: opts.EnterpriseID, Journal: opts.Journal})
	if err != nil {
		return Result{}, fmt.Errorf("listing %s entries: %w", opts.Journal, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		if e.Reference != "" {
			seen[e.Reference] = true
		}
	}

	var res Result
	for _, txn := range txns {
		if seen[txn.Reference] || txn.Amount.IsZero() {
			res.Skipped = append(res.Skipped, txn)
			continue
		}
		e, err := p.entries.Create(ctx, entryFor(opts, txn))
		if err != nil {
			return res, fmt.Errorf("importing %s: %w", txn.Reference, err)
		}
		res.Created = append(res.Created, e)
	}
	p.log.Info("bank statement imported",
		zap.String("journal", opts.Journal), zap.Int("created", len(res.Created)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func entryFor(opts Options, txn Transaction) journal.CreateParams {
	label := truncate(txn.Description, maxLabel)
	if label == "" {
		label = txn.Reference
	}
	amt := txn.Amount.Abs()
	bank := journal.LineParams{Account: opts.Bank, Label: label}
	counter := journal.LineParams{Account: opts.Counter, Label: label}
	if txn.Amount.IsPositive() {
		bank.Debit, counter.Credit = amt, amt
	} else {
		bank.Credit, counter.Debit = amt, amt
	}
	return journal.CreateParams{
		EnterpriseID: opts.EnterpriseID,
		Journal:      opts.Journal,
		Date:         txn.Date,
		Label:        label,
		Reference:    txn.Reference,
		User:         opts.User,
		Lines:        []journal.LineParams{bank, counter},
	}
}

const maxLabel = 255

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// PostFile parses path with parser and posts its transactions.
func (p *Poster) PostFile(ctx context.Context, opts Options, parser Parser, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	txns, err := parser.Parse(f)
	if err != nil {
		return Result{}, &model.InvalidInputError{Problems: []string{fmt.Sprintf("%s: %v", path, err)}}
	}
	return p.Post(ctx, opts, txns)
}

// PostDir imports every CSV waiting in dir and moves each fully imported
// file to dir/processed. It stops at the first file that fails, leaving that
// file in place.
func (p *Poster) PostDir(ctx context.Context, opts Options, parser Parser, dir string) (Result, error) {
	files, err := Scan(dir)
	if err != nil {
		return Result{}, err
	}
	var total Result
	for _, fi := range files {
		res, err := p.PostFile(ctx, opts, parser, fi.Path)
		total.merge(res)
		if err != nil {
			return total, err
		}
		if err := MarkProcessed(dir, fi.Name); err != nil {
			return total, err
		}
		p.log.Debug("statement processed", zap.String("file", fi.Name))
	}
	return total, nil
}
