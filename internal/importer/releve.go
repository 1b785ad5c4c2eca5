package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReleveParser parses the semicolon separated statement layout most French
// and West African banks export:
//
//	Date;Libellé;Débit;Crédit
//	03/01/2024;PRLV SEPA EDF;84,20;
//
// Dates are day first and amounts use a decimal comma with optional spaces
// as thousands separators.
type ReleveParser struct{}

// Format returns the parser name.
func (p *ReleveParser) Format() string { return "releve" }

// Parse reads a statement. The first row is a header.
func (p *ReleveParser) Parse(r io.Reader) ([]Transaction, error) {
	return readStatement(r, layout{name: "statement", comma: ';', fields: 4}, parseReleveRow)
}

func parseReleveRow(rec []string) (Transaction, error) {
	date, err := time.Parse("02/01/2006", strings.TrimSpace(rec[0]))
	if err != nil {
		return Transaction{}, fmt.Errorf("parsing date %q: %w", rec[0], err)
	}
	debit, err := frenchAmount(rec[2])
	if err != nil {
		return Transaction{}, err
	}
	credit, err := frenchAmount(rec[3])
	if err != nil {
		return Transaction{}, err
	}
	if debit.IsZero() == credit.IsZero() {
		return Transaction{}, fmt.Errorf("want exactly one of debit %q and credit %q", rec[2], rec[3])
	}

	label := strings.TrimSpace(rec[1])
	// The bank's debit is money leaving the account.
	amount := credit.Sub(debit)
	return Transaction{
		Date:        date,
		Description: label,
		Amount:      amount,
		Reference:   makeRef("releve", date, label, amount),
	}, nil
}

func frenchAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d.Abs(), nil
}
