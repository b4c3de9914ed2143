package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the enrichment response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached enrichment response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, root)
			if err != nil {
				return err
			}

			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			log.WithField("entries", n).Info("cleared enrichment cache")
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses\n", n)
			return nil
		},
	})
	return cmd
}
