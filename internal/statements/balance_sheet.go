package statements

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// BalanceSheet is the period-end position of an enterprise. Asset amounts
// are debit-positive, liability and equity amounts credit-positive.
type BalanceSheet struct {
	Period model.Period

	FixedAssets   []AccountAmount // class 2
	CurrentAssets []AccountAmount // class 3
	Receivables   []AccountAmount // debit class 4, uncalled capital
	Cash          []AccountAmount // class 5

	Equity     []AccountAmount // class 1
	Provisions []AccountAmount
	Borrowings []AccountAmount // 16, 17 and credit-natured class 5
	Payables   []AccountAmount // credit class 4

	PriorResults decimal.Decimal
	NetResult    decimal.Decimal

	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	// Difference is assets minus liabilities and equity; nonzero means the
	// chart does not hold together.
	Difference decimal.Decimal
}

// Balanced reports whether assets equal liabilities plus equity.
func (bs BalanceSheet) Balanced() bool { return bs.Difference.IsZero() }

// BalanceSheet builds the balance sheet of a snapshot and folds the income
// statement's net result into equity.
//
// Classes 2 to 4 are read from the consolidated balance of top-level
// accounts. Classes 1 and 5 are read from leaf accounts only, so an own
// balance held by a parent in those classes is left out and shows up as a
// difference. A nonzero difference is returned as an InconsistentTreeError
// together with the full sheet.
func (e *Engine) BalanceSheet(s *Snapshot, is IncomeStatement) (BalanceSheet, error) {
	bs := BalanceSheet{
		Period:       s.Period,
		PriorResults: priorResults(s),
		NetResult:    is.NetResult,
	}
	chart := s.Enterprise.Chart

	for _, a := range s.Tree.Roots() {
		switch a.Class {
		case 2, 3, 4:
			bs.classify(chart, a, s.Closing(a.ID).Net())
		}
	}
	for _, a := range s.Tree.Leaves() {
		switch a.Class {
		case 1, 5:
			bs.classify(chart, a, s.Tree.Self(a.ID).Net())
		}
	}

	bs.TotalAssets = total(bs.FixedAssets).Add(total(bs.CurrentAssets)).Add(total(bs.Receivables)).Add(total(bs.Cash))
	bs.TotalLiabilities = total(bs.Provisions).Add(total(bs.Borrowings)).Add(total(bs.Payables))
	bs.TotalEquity = total(bs.Equity).Add(bs.PriorResults).Add(bs.NetResult)
	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilities.Add(bs.TotalEquity))

	if !bs.Balanced() {
		e.log.Warn("balance sheet does not balance",
			zap.Int64("enterprise", s.Enterprise.ID),
			zap.String("assets", bs.TotalAssets.StringFixed(2)),
			zap.String("liabilities_and_equity", bs.TotalLiabilities.Add(bs.TotalEquity).StringFixed(2)),
			zap.String("difference", bs.Difference.StringFixed(2)))
		return bs, &model.InconsistentTreeError{
			Reason:     fmt.Sprintf("balance sheet of period %d does not balance", s.Period.ID),
			Difference: bs.Difference,
		}
	}
	return bs, nil
}

// classify files one account's net debit balance into its section.
func (bs *BalanceSheet) classify(chart model.Chart, a model.Account, net decimal.Decimal) {
	if net.IsZero() {
		return
	}
	number := chart.StripPrefix(a.Number)
	asset := func(section *[]AccountAmount) { *section = append(*section, amountOf(a, net)) }
	liability := func(section *[]AccountAmount) { *section = append(*section, amountOf(a, net.Neg())) }

	switch a.Class {
	case 1:
		switch {
		case strings.HasPrefix(number, "109"):
			// Subscribed capital not yet called is a claim on shareholders.
			if net.IsPositive() {
				asset(&bs.Receivables)
			} else {
				liability(&bs.Equity)
			}
		case strings.HasPrefix(number, "16"), strings.HasPrefix(number, "17"):
			liability(&bs.Borrowings)
		case isProvision(chart, number):
			liability(&bs.Provisions)
		default:
			liability(&bs.Equity)
		}
	case 2:
		asset(&bs.FixedAssets)
	case 3:
		asset(&bs.CurrentAssets)
	case 4:
		switch a.Nature {
		case model.NatureAsset:
			asset(&bs.Receivables)
		case model.NatureLiability:
			liability(&bs.Payables)
		default:
			if net.IsPositive() {
				asset(&bs.Receivables)
			} else {
				liability(&bs.Payables)
			}
		}
	case 5:
		if a.Nature == model.NatureLiability {
			liability(&bs.Borrowings)
		} else {
			asset(&bs.Cash)
		}
	}
}

// isProvision reports the provision ranges: 15 in the French chart, 19 in
// OHADA, where 15 holds regulated provisions counted as equity.
func isProvision(chart model.Chart, number string) bool {
	if chart == model.ChartOHADA {
		return strings.HasPrefix(number, "19")
	}
	return strings.HasPrefix(number, "15")
}
