package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

const (
	numFields        = 7
	colNumber        = 0
	colLabel         = 1
	colNature        = 2
	colParent        = 3
	colAcceptsChild  = 4
	colOpeningDebit  = 5
	colOpeningCredit = 6
)

var header = []string{"number", "label", "nature", "parent", "accepts_children", "opening_debit", "opening_credit"}

// ReadDefinitions reads a chart of accounts in CSV form.
func ReadDefinitions(r io.Reader) ([]Definition, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var defs []Definition
	for i, rec := range records[1:] {
		d, err := UnmarshalDefinition(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// WriteDefinitions writes a chart of accounts in CSV form.
func WriteDefinitions(w io.Writer, defs []Definition) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, d := range defs {
		if err := cw.Write(MarshalDefinition(d)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalDefinition converts a Definition to a CSV row.
func MarshalDefinition(d Definition) []string {
	row := make([]string, numFields)
	row[colNumber] = d.Number
	row[colLabel] = d.Label
	row[colNature] = string(d.Nature)
	row[colParent] = d.Parent
	row[colAcceptsChild] = strconv.FormatBool(d.AcceptsChildren)
	row[colOpeningDebit] = d.OpeningDebit.String()
	row[colOpeningCredit] = d.OpeningCredit.String()
	return row
}

// UnmarshalDefinition converts a CSV row to a Definition. Empty amounts read
// as zero and an empty nature is left for the caller to default.
func UnmarshalDefinition(record []string) (Definition, error) {
	if len(record) != numFields {
		return Definition{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colNumber] == "" {
		return Definition{}, fmt.Errorf("empty account number")
	}

	nature := model.Nature(record[colNature])
	if nature != "" && !nature.Valid() {
		return Definition{}, fmt.Errorf("invalid nature %q", record[colNature])
	}

	var accepts bool
	if record[colAcceptsChild] != "" {
		var err error
		accepts, err = strconv.ParseBool(record[colAcceptsChild])
		if err != nil {
			return Definition{}, fmt.Errorf("parsing accepts_children %q: %w", record[colAcceptsChild], err)
		}
	}

	debit, err := parseAmount(record[colOpeningDebit])
	if err != nil {
		return Definition{}, fmt.Errorf("parsing opening_debit: %w", err)
	}
	credit, err := parseAmount(record[colOpeningCredit])
	if err != nil {
		return Definition{}, fmt.Errorf("parsing opening_credit: %w", err)
	}

	return Definition{
		Number:          record[colNumber],
		Label:           record[colLabel],
		Nature:          nature,
		Parent:          record[colParent],
		AcceptsChildren: accepts,
		OpeningDebit:    debit,
		OpeningCredit:   credit,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q: amount must not be negative", s)
	}
	return d, nil
}
