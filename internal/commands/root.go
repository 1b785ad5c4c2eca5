package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/grandlivre/internal/buildinfo"
	"github.com/cleared-dev/grandlivre/internal/model"
)

// DefaultConfigFile is read from the working directory unless --config says otherwise.
const DefaultConfigFile = "grandlivre.yaml"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "grandlivre",
		Short:   "General ledger for the French and OHADA charts of accounts",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigFile, "configuration file")
	rootCmd.PersistentFlags().StringVar(&a.user, "user", defaultUser(), "acting user recorded on entries")

	rootCmd.AddCommand(
		newInitCommand(a),
		newAccountCommand(a),
		newPeriodCommand(a),
		newEntryCommand(a),
		newReportCommand(a),
		newSyncCommand(a),
	)

	return rootCmd
}

// FormatError renders a command failure as its error kind and message.
func FormatError(err error) string {
	return fmt.Sprintf("Error [%s]: %v", model.Kind(err), err)
}

func defaultUser() string {
	if u := os.Getenv("GRANDLIVRE_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}
