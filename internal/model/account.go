package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Nature classifies accounts by the side of the balance they normally carry.
type Nature string

const (
	NatureAsset            Nature = "ASSET"
	NatureLiability        Nature = "LIABILITY"
	NatureExpense          Nature = "EXPENSE"
	NatureRevenue          Nature = "REVENUE"
	NatureAssetOrLiability Nature = "ASSET_OR_LIABILITY"
)

// Valid reports whether n is one of the known natures.
func (n Nature) Valid() bool {
	switch n {
	case NatureAsset, NatureLiability, NatureExpense, NatureRevenue, NatureAssetOrLiability:
		return true
	}
	return false
}

// Chart identifies the chart of accounts an enterprise keeps its books in.
type Chart string

const (
	ChartFR    Chart = "FR"
	ChartOHADA Chart = "OHADA"
)

// OHADAPrefix is prepended to every account number of an OHADA chart.
const OHADAPrefix = "CM"

// Valid reports whether c is a supported chart.
func (c Chart) Valid() bool {
	return c == ChartFR || c == ChartOHADA
}

// StripPrefix removes the chart-specific prefix from an account number.
func (c Chart) StripPrefix(number string) string {
	if c == ChartOHADA {
		return strings.TrimPrefix(number, OHADAPrefix)
	}
	return number
}

// Enterprise owns a chart of accounts, its periods and its entries.
type Enterprise struct {
	ID    int64
	Name  string
	Chart Chart
}

// Account is a node of an enterprise's chart of accounts.
type Account struct {
	ID              int64
	EnterpriseID    int64
	Number          string
	Label           string
	Nature          Nature
	Class           int
	ParentID        int64 // 0 = top-level
	AcceptsChildren bool
	OpeningDebit    decimal.Decimal
	OpeningCredit   decimal.Decimal
	Debit           decimal.Decimal // current self balance, leaf accounts only
	Credit          decimal.Decimal
	Active          bool
}

// HasParent reports whether the account hangs under another account.
func (a Account) HasParent() bool {
	return a.ParentID != 0
}

// ClassOf returns the account class (1-9) encoded by the first digit of the
// number once the chart prefix is stripped, or 0 if there is none.
func ClassOf(chart Chart, number string) int {
	n := chart.StripPrefix(number)
	if n == "" || n[0] < '0' || n[0] > '9' {
		return 0
	}
	return int(n[0] - '0')
}

// DefaultNature returns the nature usually carried by accounts of a class.
func DefaultNature(class int) Nature {
	switch class {
	case 1:
		return NatureLiability
	case 2, 3, 5:
		return NatureAsset
	case 4:
		return NatureAssetOrLiability
	case 6:
		return NatureExpense
	case 7:
		return NatureRevenue
	default:
		return NatureAssetOrLiability
	}
}

// Balance is a debit/credit pair.
type Balance struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Add returns the component-wise sum of b and o.
func (b Balance) Add(o Balance) Balance {
	return Balance{Debit: b.Debit.Add(o.Debit), Credit: b.Credit.Add(o.Credit)}
}

// Net returns debit minus credit: positive for a debit balance.
func (b Balance) Net() decimal.Decimal {
	return b.Debit.Sub(b.Credit)
}

// IsZero reports whether both sides are zero.
func (b Balance) IsZero() bool {
	return b.Debit.IsZero() && b.Credit.IsZero()
}

// Split turns a signed net amount back into a one-sided balance.
func Split(net decimal.Decimal) Balance {
	if net.IsNegative() {
		return Balance{Debit: decimal.Zero, Credit: net.Neg()}
	}
	return Balance{Debit: net, Credit: decimal.Zero}
}

// Opening returns the account's opening balance.
func (a Account) Opening() Balance {
	return Balance{Debit: a.OpeningDebit, Credit: a.OpeningCredit}
}
