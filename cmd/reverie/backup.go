package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
)

func newBackupCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot, list and restore the SQLite journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Take a verified snapshot now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.NewBackupService(c.cfg, c.log)
			if err != nil {
				return err
			}
			snap, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s (%s, %s)\n",
				snap.Path, humanize.IBytes(uint64(snap.Size)), snap.Duration.Round(time.Millisecond))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.NewBackupService(c.cfg, c.log)
			if err != nil {
				return err
			}
			snapshots, err := svc.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintf(out, "No snapshots in %s\n", svc.Dir())
				return nil
			}
			for _, s := range snapshots {
				fmt.Fprintf(out, "%s  %8s  %s\n",
					s.Taken.Local().Format("2006-01-02 15:04:05"), humanize.IBytes(uint64(s.Size)), filepath.Base(s.Path))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Replace the journal with a snapshot (stop reverie-web first)",
		Long: `Replace the journal database with a snapshot. <snapshot> is a path or a
file name from "reverie backup list". The current database is kept aside
and put back if the restore fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := app.NewBackupService(c.cfg, c.log)
			if err != nil {
				return err
			}
			path := args[0]
			if filepath.Base(path) == path {
				if _, err := os.Stat(path); err != nil {
					path = filepath.Join(svc.Dir(), path)
				}
			}
			if err := svc.Restore(ctx, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored journal from %s\n", path)
			return nil
		},
	})

	return cmd
}
