package commands

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Drain the mutation audit mirror's mirror_pending recovery queue",
	Long: `Replays every DocChange row still flagged mirror_pending (§4.13):
the file writes behind those rows already completed successfully, so
reconcile's job is to confirm the registry store is reachable again and
clear the flag.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	pending, err := a.Engine.Audit.PendingCount(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to reconcile")
		return nil
	}

	bar := progressbar.NewOptions(pending,
		progressbar.OptionSetDescription("reconciling mirror_pending"),
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	n, err := a.Engine.Audit.Reconcile(ctx, func(done, total int) {
		bar.Set(done)
	})
	if err != nil {
		return err
	}
	bar.Finish()
	fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d row(s)\n", n)
	return nil
}
