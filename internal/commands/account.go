package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/model"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountAddCommand(a),
		newAccountListCommand(a),
		newAccountNextCommand(a),
		newAccountImportCommand(a),
		newAccountExportCommand(a),
		newAccountRequireCommand(a),
		newAccountActiveCommand(a, "activate", true),
		newAccountActiveCommand(a, "deactivate", false),
	)
	return cmd
}

func newAccountAddCommand(a *app) *cobra.Command {
	var (
		parent, nature        string
		acceptsChildren       bool
		openDebit, openCredit string
	)
	cmd := &cobra.Command{
		Use:   "add <number> <label>",
		Short: "Add an account",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			debit, err := parseAmount(openDebit)
			if err != nil {
				return err
			}
			credit, err := parseAmount(openCredit)
			if err != nil {
				return err
			}
			acct, err := a.accounts.Create(cmd.Context(), accounts.CreateParams{
				EnterpriseID:    a.enterpriseID(),
				Number:          args[0],
				Label:           args[1],
				Nature:          model.Nature(strings.ToUpper(nature)),
				ParentNumber:    parent,
				AcceptsChildren: acceptsChildren,
				OpeningDebit:    debit,
				OpeningCredit:   credit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added account %s %s (%s, class %d)\n", acct.Number, acct.Label, acct.Nature, acct.Class)
			return nil
		}),
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent account number")
	cmd.Flags().StringVar(&nature, "nature", "", "ASSET, LIABILITY, EXPENSE, REVENUE or ASSET_OR_LIABILITY (default from class)")
	cmd.Flags().BoolVar(&acceptsChildren, "accepts-children", false, "allow sub-accounts")
	cmd.Flags().StringVar(&openDebit, "opening-debit", "", "opening debit balance")
	cmd.Flags().StringVar(&openCredit, "opening-credit", "", "opening credit balance")
	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their consolidated balances",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			tree, err := a.accounts.Tree(cmd.Context(), a.enterpriseID())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			row(w, "NUMBER", "LABEL", "NATURE", "DEBIT", "CREDIT")
			for _, acct := range tree.Accounts() {
				number := strings.Repeat("  ", depth(tree, acct)) + acct.Number
				if !acct.Active {
					number += " (inactive)"
				}
				net := tree.Consolidated(acct.ID).Net()
				bal := model.Split(net)
				row(w, number, acct.Label, string(acct.Nature), amount(bal.Debit), amount(bal.Credit))
			}
			return w.Flush()
		}),
	}
}

func depth(tree *accounts.Tree, acct model.Account) int {
	d := 0
	for {
		parent, ok := tree.Parent(acct.ID)
		if !ok {
			return d
		}
		acct = parent
		d++
	}
}

func newAccountNextCommand(a *app) *cobra.Command {
	var child bool
	cmd := &cobra.Command{
		Use:   "next <prefix|parent>",
		Short: "Suggest the next free account number",
		Long: "Suggests the next number after the highest account starting with prefix, " +
			"or with --child the next sub-account number of a parent account.",
		Args: cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			var next string
			if child {
				next = a.accounts.NextChildNumber(cmd.Context(), a.enterpriseID(), args[0])
			} else {
				next = a.accounts.NextSiblingNumber(cmd.Context(), a.enterpriseID(), args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&child, "child", false, "treat the argument as a parent account number")
	return cmd
}

func newAccountImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import accounts from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			n, err := a.accounts.Import(cmd.Context(), a.enterpriseID(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", n)
			return nil
		}),
	}
}

func newAccountExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.csv]",
		Short: "Export the chart of accounts as CSV (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.accounts.Export(cmd.Context(), a.enterpriseID(), cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}
			if err := a.accounts.Export(cmd.Context(), a.enterpriseID(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}),
	}
}

func newAccountRequireCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "require [role...]",
		Short: "Check that the fixed invoicing accounts exist",
		Long:  "Roles: " + strings.Join(accounts.Roles, ", ") + ". All roles are checked when none is given.",
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			found, err := a.accounts.RequireFixed(cmd.Context(), a.enterpriseID(), args...)
			if err != nil {
				return err
			}
			roles := args
			if len(roles) == 0 {
				roles = accounts.Roles
			}
			w := newTable(cmd.OutOrStdout())
			row(w, "ROLE", "NUMBER", "LABEL")
			for _, role := range roles {
				row(w, role, found[role].Number, found[role].Label)
			}
			return w.Flush()
		}),
	}
}

func newAccountActiveCommand(a *app, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <number>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if err := a.accounts.SetActive(cmd.Context(), a.enterpriseID(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s %sd\n", args[0], verb)
			return nil
		}),
	}
}
