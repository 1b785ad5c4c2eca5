package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Repair account balances",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pending",
			Short: "Post validated entries whose balance update failed",
			Args:  cobra.NoArgs,
			RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
				n, err := a.prop.ApplyPending(cmd.Context(), a.enterpriseID())
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %d pending entries\n", n)
				return err
			}),
		},
		&cobra.Command{
			Use:   "rebuild",
			Short: "Recompute every balance from validated entries",
			Args:  cobra.NoArgs,
			RunE: a.withLedger(func(cmd *cobra.Command, args []string) error {
				n, err := a.prop.Resync(cmd.Context(), a.enterpriseID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt balances from %d entries\n", n)
				return nil
			}),
		},
	)
	return cmd
}
