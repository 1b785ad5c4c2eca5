package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/statements"
)

func newReportCommand(a *app) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Derive financial statements for a period",
	}
	cmd.PersistentFlags().StringVar(&period, "period", "", "period id (default: most recent period)")

	load := func(cmd *cobra.Command) (*statements.Snapshot, error) {
		p, err := a.period(cmd, period)
		if err != nil {
			return nil, err
		}
		return a.statements.Load(cmd.Context(), a.enterpriseID(), p.ID)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "trial-balance",
			Short: "Per-account movement and closing balance",
			Args:  cobra.NoArgs,
			RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
				s, err := load(cmd)
				if err != nil {
					return err
				}
				return printTrialBalance(cmd.OutOrStdout(), a.statements.TrialBalance(s))
			}),
		},
		&cobra.Command{
			Use:   "income-statement",
			Short: "Expenses, revenue and net result",
			Args:  cobra.NoArgs,
			RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
				s, err := load(cmd)
				if err != nil {
					return err
				}
				return printIncomeStatement(cmd.OutOrStdout(), a.statements.IncomeStatement(s))
			}),
		},
		&cobra.Command{
			Use:   "balance-sheet",
			Short: "Assets against liabilities and equity",
			Args:  cobra.NoArgs,
			RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
				s, err := load(cmd)
				if err != nil {
					return err
				}
				bs, err := a.statements.BalanceSheet(s, a.statements.IncomeStatement(s))
				var tree *model.InconsistentTreeError
				if err != nil && !errors.As(err, &tree) {
					return err
				}
				if perr := printBalanceSheet(cmd.OutOrStdout(), bs); perr != nil {
					return perr
				}
				return err
			}),
		},
	)
	return cmd
}

func periodTitle(out io.Writer, title string, p model.Period) {
	fmt.Fprintf(out, "%s %s..%s\n\n", title, day(p.Start), day(p.End))
}

func printTrialBalance(out io.Writer, tb statements.TrialBalance) error {
	periodTitle(out, "Trial balance", tb.Period)
	w := newTable(out)
	row(w, "NUMBER", "LABEL", "OPEN DEBIT", "OPEN CREDIT", "DEBIT", "CREDIT", "CLOSE DEBIT", "CLOSE CREDIT")
	for _, r := range tb.Rows {
		row(w, r.Number, r.Label,
			amount(r.Opening.Debit), amount(r.Opening.Credit),
			amount(r.Movement.Debit), amount(r.Movement.Credit),
			amount(r.Closing.Debit), amount(r.Closing.Credit))
	}
	row(w, "", "TOTAL",
		money(tb.TotalOpening.Debit), money(tb.TotalOpening.Credit),
		money(tb.TotalMovement.Debit), money(tb.TotalMovement.Credit),
		money(tb.TotalClosing.Debit), money(tb.TotalClosing.Credit))
	return w.Flush()
}

func section(w *tabwriter.Writer, title string, lines []statements.AccountAmount) {
	if len(lines) == 0 {
		return
	}
	row(w, title, "", "")
	for _, l := range lines {
		row(w, "  "+l.Number, l.Label, money(l.Amount))
	}
}

func subtotal(w *tabwriter.Writer, label string, d decimal.Decimal) {
	row(w, label, "", money(d))
}

func printIncomeStatement(out io.Writer, is statements.IncomeStatement) error {
	periodTitle(out, "Income statement", is.Period)
	w := newTable(out)
	section(w, "Revenue", is.Revenue)
	subtotal(w, "Total revenue", is.TotalRevenue)
	section(w, "Expenses", is.Expenses)
	subtotal(w, "Total expenses", is.TotalExpenses)
	subtotal(w, "Net result", is.NetResult)
	if err := w.Flush(); err != nil {
		return err
	}
	for _, number := range is.Abnormal {
		fmt.Fprintf(out, "Warning: account %s runs against its nature\n", number)
	}
	return nil
}

func printBalanceSheet(out io.Writer, bs statements.BalanceSheet) error {
	periodTitle(out, "Balance sheet", bs.Period)
	w := newTable(out)
	row(w, "ASSETS", "", "")
	section(w, "Fixed assets", bs.FixedAssets)
	section(w, "Current assets", bs.CurrentAssets)
	section(w, "Receivables", bs.Receivables)
	section(w, "Cash", bs.Cash)
	subtotal(w, "Total assets", bs.TotalAssets)
	row(w, "", "", "")
	row(w, "LIABILITIES AND EQUITY", "", "")
	section(w, "Equity", bs.Equity)
	subtotal(w, "  Prior results", bs.PriorResults)
	subtotal(w, "  Net result", bs.NetResult)
	subtotal(w, "Total equity", bs.TotalEquity)
	section(w, "Provisions", bs.Provisions)
	section(w, "Borrowings", bs.Borrowings)
	section(w, "Payables", bs.Payables)
	subtotal(w, "Total liabilities", bs.TotalLiabilities)
	subtotal(w, "Difference", bs.Difference)
	return w.Flush()
}
