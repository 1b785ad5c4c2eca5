package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/accounts"
	"github.com/cleared-dev/grandlivre/internal/importer"
	"github.com/cleared-dev/grandlivre/internal/model"
)

func newEntryImportCommand(a *app) *cobra.Command {
	var (
		format, dir, bank, against, journalCode string
	)
	registry := importer.DefaultRegistry()
	formats := registry.Formats()
	sort.Strings(formats)

	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Record each movement of a bank statement as a draft entry",
		Long: `Reads a bank statement export and writes one draft entry per movement,
balanced against the --against account until it is reclassified. Movements
already imported under the same reference are skipped. With --dir every CSV
in the directory is imported and moved to its processed/ subdirectory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (dir != "") {
				return &model.InvalidInputError{Problems: []string{"give either a statement file or --dir"}}
			}
			parser := registry.Get(format)
			if parser == nil {
				return &model.InvalidInputError{Problems: []string{
					fmt.Sprintf("unknown statement format %q (known: %s)", format, strings.Join(formats, ", ")),
				}}
			}
			if bank == "" {
				fixed, err := a.accounts.RequireFixed(cmd.Context(), a.enterpriseID(), accounts.RoleBanque)
				if err != nil {
					return err
				}
				bank = fixed[accounts.RoleBanque].Number
			}

			opts := importer.Options{
				EnterpriseID: a.enterpriseID(),
				Journal:      strings.ToUpper(journalCode),
				Bank:         bank,
				Counter:      against,
				User:         a.user,
			}
			poster := importer.NewPoster(a.journal, a.log)
			var (
				res importer.Result
				err error
			)
			if dir != "" {
				res, err = poster.PostDir(cmd.Context(), opts, parser, dir)
			} else {
				res, err = poster.PostFile(cmd.Context(), opts, parser, args[0])
			}
			out := cmd.OutOrStdout()
			for _, e := range res.Created {
				fmt.Fprintf(out, "Created draft entry %s (%s)\n", e.Number, e.Reference)
			}
			fmt.Fprintf(out, "Imported %d movements, skipped %d\n", len(res.Created), len(res.Skipped))
			return err
		}),
	}
	cmd.Flags().StringVar(&format, "format", "releve", "statement format: "+strings.Join(formats, ", "))
	cmd.Flags().StringVar(&dir, "dir", "", "import every CSV in this directory")
	cmd.Flags().StringVar(&bank, "bank", "", "bank account number (default: the chart's bank account)")
	cmd.Flags().StringVar(&against, "against", "", "counterpart account for every movement (required)")
	cmd.Flags().StringVar(&journalCode, "journal", importer.DefaultJournal, "journal code")
	_ = cmd.MarkFlagRequired("against")
	return cmd
}
