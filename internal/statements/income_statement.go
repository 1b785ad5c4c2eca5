package statements

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// IncomeStatement sums the period's expense and revenue accounts. Amounts
// are positive in the account's normal direction: debit for expenses,
// credit for revenue.
type IncomeStatement struct {
	Period        model.Period
	Expenses      []AccountAmount
	Revenue       []AccountAmount
	TotalExpenses decimal.Decimal
	TotalRevenue  decimal.Decimal
	NetResult     decimal.Decimal // revenue minus expenses
	// Abnormal lists leaf accounts whose movement runs against their nature.
	Abnormal []string
}

type side int

const (
	notResult side = iota
	expense
	revenue
)

// resultSide places an account on the income statement. Classes 6 and 7
// always belong there; OHADA class 8 (HAO) follows the account's nature,
// and by the sign of net when the nature is ambiguous.
func resultSide(chart model.Chart, a model.Account, net decimal.Decimal) side {
	switch a.Class {
	case 6:
		return expense
	case 7:
		return revenue
	case 8:
		if chart != model.ChartOHADA {
			return notResult
		}
		switch a.Nature {
		case model.NatureExpense:
			return expense
		case model.NatureRevenue:
			return revenue
		}
		if net.IsNegative() {
			return revenue
		}
		return expense
	}
	return notResult
}

// IncomeStatement builds the income statement of a snapshot from the
// consolidated movement of top-level result accounts.
func (e *Engine) IncomeStatement(s *Snapshot) IncomeStatement {
	is := IncomeStatement{
		Period:        s.Period,
		TotalExpenses: decimal.Zero,
		TotalRevenue:  decimal.Zero,
	}
	chart := s.Enterprise.Chart

	for _, a := range s.Tree.Roots() {
		net := s.Movement(a.ID)
		if net.IsZero() {
			continue
		}
		switch resultSide(chart, a, net) {
		case expense:
			is.Expenses = append(is.Expenses, amountOf(a, net))
		case revenue:
			is.Revenue = append(is.Revenue, amountOf(a, net.Neg()))
		}
	}
	is.TotalExpenses = total(is.Expenses)
	is.TotalRevenue = total(is.Revenue)
	is.NetResult = is.TotalRevenue.Sub(is.TotalExpenses)

	for _, a := range s.Tree.Leaves() {
		net := s.Movement(a.ID)
		abnormal := false
		switch resultSide(chart, a, net) {
		case expense:
			abnormal = net.IsNegative()
		case revenue:
			abnormal = net.IsPositive()
		}
		if abnormal {
			is.Abnormal = append(is.Abnormal, a.Number)
			e.log.Warn("result account carries an abnormal balance",
				zap.String("account", a.Number),
				zap.String("nature", string(a.Nature)),
				zap.String("net_debit", net.StringFixed(2)))
		}
	}
	return is
}

// priorResults is the result accumulated before the period opened: the
// credit-minus-debit opening balance of every result account.
func priorResults(s *Snapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range s.Tree.Roots() {
		net := s.Opening(a.ID).Net()
		if resultSide(s.Enterprise.Chart, a, net) != notResult {
			sum = sum.Sub(net)
		}
	}
	return sum
}
