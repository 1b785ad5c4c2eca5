package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/journal"
	"github.com/cleared-dev/grandlivre/internal/model"
	"github.com/cleared-dev/grandlivre/internal/store"
)

func newEntryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Write, validate and inspect journal entries",
	}
	cmd.AddCommand(
		newEntryCreateCommand(a),
		newEntryShowCommand(a),
		newEntryListCommand(a),
		newEntryUpdateCommand(a),
		newEntryValidateCommand(a),
		newEntryDeleteCommand(a),
		newEntryImportCommand(a),
	)
	return cmd
}

const lineHelp = "line as ACCOUNT:DEBIT:CREDIT[:LABEL], repeatable"

// parseLines reads --line values such as "411000:1200:0:Client Dupont".
func parseLines(specs []string) ([]journal.LineParams, error) {
	lines := make([]journal.LineParams, 0, len(specs))
	for i, spec := range specs {
		parts := strings.SplitN(spec, ":", 4)
		if len(parts) < 3 {
			return nil, &model.InvalidInputError{Problems: []string{
				fmt.Sprintf("line %d %q: want ACCOUNT:DEBIT:CREDIT[:LABEL]", i+1, spec),
			}}
		}
		debit, err := parseAmount(parts[1])
		if err != nil {
			return nil, err
		}
		credit, err := parseAmount(parts[2])
		if err != nil {
			return nil, err
		}
		l := journal.LineParams{Account: parts[0], Debit: debit, Credit: credit}
		if len(parts) == 4 {
			l.Label = parts[3]
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func newEntryCreateCommand(a *app) *cobra.Command {
	var (
		journalCode, number, date, label, ref string
		lineSpecs                             []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a draft entry",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			on, err := parseDay(date)
			if err != nil {
				return err
			}
			lines, err := parseLines(lineSpecs)
			if err != nil {
				return err
			}
			e, err := a.journal.Create(cmd.Context(), journal.CreateParams{
				EnterpriseID: a.enterpriseID(),
				Journal:      strings.ToUpper(journalCode),
				Number:       number,
				Date:         on,
				Label:        label,
				Reference:    ref,
				User:         a.user,
				Lines:        lines,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created draft entry %s\n", e.Number)
			return nil
		}),
	}
	cmd.Flags().StringVar(&journalCode, "journal", "", "journal code, e.g. VT, AC, BQ (required)")
	cmd.Flags().StringVar(&number, "number", "", "explicit entry number (default: next in journal)")
	cmd.Flags().StringVar(&date, "date", "", "entry date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&label, "label", "", "entry label (required)")
	cmd.Flags().StringVar(&ref, "ref", "", "external reference")
	cmd.Flags().StringArrayVar(&lineSpecs, "line", nil, lineHelp)
	_ = cmd.MarkFlagRequired("journal")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newEntryUpdateCommand(a *app) *cobra.Command {
	var (
		date, label, ref string
		lineSpecs        []string
	)
	cmd := &cobra.Command{
		Use:   "update <number>",
		Short: "Rewrite a draft entry; its lines are replaced by --line",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			e, err := a.journal.GetByNumber(cmd.Context(), a.enterpriseID(), args[0])
			if err != nil {
				return err
			}
			p := journal.UpdateParams{EntryID: e.ID, Date: e.Date, Label: e.Label, Reference: e.Reference}
			if cmd.Flags().Changed("date") {
				if p.Date, err = parseDay(date); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("label") {
				p.Label = label
			}
			if cmd.Flags().Changed("ref") {
				p.Reference = ref
			}
			if p.Lines, err = parseLines(lineSpecs); err != nil {
				return err
			}
			if _, err := a.journal.Update(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated entry %s\n", e.Number)
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "new entry date YYYY-MM-DD")
	cmd.Flags().StringVar(&label, "label", "", "new label")
	cmd.Flags().StringVar(&ref, "ref", "", "new reference")
	cmd.Flags().StringArrayVar(&lineSpecs, "line", nil, lineHelp)
	return cmd
}

func newEntryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show an entry and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			e, err := a.journal.GetByNumber(cmd.Context(), a.enterpriseID(), args[0])
			if err != nil {
				return err
			}
			return printEntry(cmd.OutOrStdout(), e)
		}),
	}
}

func printEntry(out io.Writer, e model.Entry) error {
	fmt.Fprintf(out, "%s  %s  %s  %s\n", e.Number, day(e.Date), e.Status, e.Label)
	if e.Reference != "" {
		fmt.Fprintf(out, "Reference: %s\n", e.Reference)
	}
	fmt.Fprintf(out, "Created by: %s\n", e.CreatedBy)
	if e.ValidatedAt != nil {
		fmt.Fprintf(out, "Validated by: %s at %s\n", e.ValidatedBy, e.ValidatedAt.Format("2006-01-02 15:04:05"))
	}
	w := newTable(out)
	row(w, "#", "ACCOUNT", "LABEL", "DEBIT", "CREDIT")
	for _, l := range e.Lines {
		row(w, fmt.Sprint(l.Position), l.AccountNumber, l.Label, amount(l.Debit), amount(l.Credit))
	}
	debit, credit := e.Totals()
	row(w, "", "", "TOTAL", money(debit), money(credit))
	return w.Flush()
}

func newEntryListCommand(a *app) *cobra.Command {
	var (
		period, from, to, account, journalCode string
		statuses                               []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries by period, date range, account, journal or status",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := store.EntryFilter{EnterpriseID: a.enterpriseID(), Journal: strings.ToUpper(journalCode)}
			if period != "" {
				p, err := a.period(cmd, period)
				if err != nil {
					return err
				}
				f.PeriodID = p.ID
			}
			var err error
			if from != "" {
				if f.From, err = parseDay(from); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseDay(to); err != nil {
					return err
				}
			}
			if account != "" {
				acct, err := a.accounts.ByNumber(ctx, a.enterpriseID(), account)
				if err != nil {
					return err
				}
				f.AccountID = acct.ID
			}
			for _, s := range statuses {
				f.Statuses = append(f.Statuses, model.EntryStatus(strings.ToUpper(s)))
			}

			entries, err := a.journal.List(ctx, f)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			row(w, "NUMBER", "DATE", "STATUS", "LABEL", "AMOUNT")
			for _, e := range entries {
				debit, _ := e.Totals()
				row(w, e.Number, day(e.Date), string(e.Status), e.Label, money(debit))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&period, "period", "", "period id")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&account, "account", "", "only entries with a line on this account")
	cmd.Flags().StringVar(&journalCode, "journal", "", "journal code")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "DRAFT, VALIDATED or CLOSED")
	return cmd
}

func newEntryValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <number>",
		Short: "Validate a balanced draft entry and post it to balances",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			e, err := a.journal.GetByNumber(cmd.Context(), a.enterpriseID(), args[0])
			if err != nil {
				return err
			}
			res, err := a.journal.Validate(cmd.Context(), e.ID, a.user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validated entry %s\n", res.Entry.Number)
			if res.PropagationErr != nil {
				fmt.Fprintf(out, "Warning: balances not updated (%v); run grandlivre sync pending\n", res.PropagationErr)
			}
			return nil
		}),
	}
}

func newEntryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <number>",
		Short: "Delete a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			e, err := a.journal.GetByNumber(cmd.Context(), a.enterpriseID(), args[0])
			if err != nil {
				return err
			}
			if err := a.journal.Delete(cmd.Context(), e.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %s\n", e.Number)
			return nil
		}),
	}
}
