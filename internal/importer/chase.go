package importer

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser parses Chase checking account CSV exports:
//
//	Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
//	DEBIT,01/03/2025,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,9996.00,
//
// The amount is already signed from the account holder's side.
type ChaseParser struct{}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase export. The first row is a header.
func (p *ChaseParser) Parse(r io.Reader) ([]Transaction, error) {
	return readStatement(r, layout{name: "chase", comma: ',', fields: 7}, func(rec []string) (Transaction, error) {
		date, err := time.Parse("01/02/2006", rec[1])
		if err != nil {
			return Transaction{}, fmt.Errorf("parsing date %q: %w", rec[1], err)
		}
		amount, err := decimal.NewFromString(rec[3])
		if err != nil {
			return Transaction{}, fmt.Errorf("parsing amount %q: %w", rec[3], err)
		}
		return Transaction{
			Date:        date,
			Description: rec[2],
			Amount:      amount,
			Reference:   makeRef("chase", date, rec[2], amount),
		}, nil
	})
}
