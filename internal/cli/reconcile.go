package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"samplecore/internal/config"
	"samplecore/internal/core"
	"samplecore/internal/schema"
)

// NewReconcileCommand creates the command that sweeps revision stores for
// rows left behind by interrupted updates.
func NewReconcileCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove orphaned revision rows left by interrupted updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.ConfigPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			schemas := schema.MustLoad()
			svc := core.NewService(store, schemas)
			total := 0
			for _, kind := range schemas.Kinds() {
				removed, err := svc.ReconcileOrphans(ctx, kind)
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", kind, err)
				}
				if removed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d orphaned revision(s)\n", kind, removed)
				}
				total += removed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "done, %d orphaned revision(s) removed\n", total)
			return nil
		},
	}
}
