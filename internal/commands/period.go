package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/model"
)

func newPeriodCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage financial periods (exercices)",
	}
	cmd.AddCommand(newPeriodAddCommand(a), newPeriodListCommand(a), newPeriodCloseCommand(a))
	return cmd
}

func newPeriodAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <start> <end>",
		Short: "Open a period covering start..end (YYYY-MM-DD, both inclusive)",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			start, err := parseDay(args[0])
			if err != nil {
				return err
			}
			end, err := parseDay(args[1])
			if err != nil {
				return err
			}
			p, err := a.journal.OpenPeriod(cmd.Context(), a.enterpriseID(), start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened period %d: %s..%s\n", p.ID, day(p.Start), day(p.End))
			return nil
		}),
	}
}

func newPeriodListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List periods",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			periods, err := a.journal.Periods(cmd.Context(), a.enterpriseID())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			row(w, "ID", "START", "END", "STATUS")
			for _, p := range periods {
				row(w, strconv.FormatInt(p.ID, 10), day(p.Start), day(p.End), string(p.Status))
			}
			return w.Flush()
		}),
	}
}

func newPeriodCloseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close <period-id>",
		Short: "Close a period and every validated entry in it",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			p, err := a.period(cmd, args[0])
			if err != nil {
				return err
			}
			n, err := a.journal.ClosePeriod(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed period %d (%d entries)\n", p.ID, n)
			return nil
		}),
	}
}

// period resolves a period id of the configured enterprise. An empty id
// selects the most recent period.
func (a *app) period(cmd *cobra.Command, arg string) (model.Period, error) {
	periods, err := a.journal.Periods(cmd.Context(), a.enterpriseID())
	if err != nil {
		return model.Period{}, err
	}
	if arg == "" {
		if len(periods) == 0 {
			return model.Period{}, fmt.Errorf("no period has been opened: %w", model.ErrNotFound)
		}
		return periods[len(periods)-1], nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return model.Period{}, &model.InvalidInputError{Problems: []string{fmt.Sprintf("period id %q is not a number", arg)}}
	}
	for _, p := range periods {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Period{}, fmt.Errorf("period %d: %w", id, model.ErrNotFound)
}
