// Package importer reads bank statement exports and records each movement as
// a draft entry in the bank journal.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one movement on a bank statement. Amount is positive for
// money received and negative for money paid out.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
}

// Parser converts a bank CSV export into Transactions.
type Parser interface {
	Parse(r io.Reader) ([]Transaction, error)
	Format() string
}

// layout describes the CSV dialect of one bank's export.
type layout struct {
	name   string
	comma  rune
	fields int
}

// readStatement reads a headed CSV export and converts each data row with
// parse. Errors name the 1-based row of the file.
func readStatement(r io.Reader, l layout, parse func([]string) (Transaction, error)) ([]Transaction, error) {
	cr := csv.NewReader(r)
	cr.Comma = l.comma
	cr.FieldsPerRecord = l.fields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", l.name, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	txns := make([]Transaction, 0, len(records)-1)
	for i, rec := range records[1:] {
		txn, err := parse(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	numberRepeats(txns)
	return txns, nil
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a statement file waiting in an import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&ReleveParser{})
	return r
}

// ProcessedDir is the subdirectory statements are moved to once imported.
const ProcessedDir = "processed"

// Scan returns the CSV files directly under dir. A missing dir holds no
// files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, ProcessedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// makeRef builds a reference like chase_20250103_GITHUBPROS_-400 from the
// bank name, the date, the first alphanumerics of the description and the
// signed amount in cents.
func makeRef(bank string, date time.Time, desc string, amount decimal.Decimal) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("%s_%s_%s_%s", bank, date.Format("20060102"), prefix, amount.Shift(2).StringFixed(0))
}

// numberRepeats suffixes the second and later of identical references in
// one statement with their occurrence, so two equal purchases on the same
// day stay distinct while a re-read of the file yields the same references.
func numberRepeats(txns []Transaction) {
	seen := make(map[string]int, len(txns))
	for i := range txns {
		base := txns[i].Reference
		seen[base]++
		if n := seen[base]; n > 1 {
			txns[i].Reference = fmt.Sprintf("%s_%d", base, n)
		}
	}
}
