package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/engine"
)

func newBackfillCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed entries that were saved without an embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Journal.Backfill(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed=%d failed=%d remaining=%d\n",
					result.Processed, result.Failed, result.Remaining)
				return nil
			})
		},
	}

	cmd.Flags().Int("limit", engine.DefaultBackfillLimit,
		fmt.Sprintf("Entries to embed in this run (1-%d)", engine.MaxBackfillLimit))
	return cmd
}
