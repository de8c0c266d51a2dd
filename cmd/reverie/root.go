package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/logger"
)

// cli carries what the persistent pre-run loaded to the subcommands.
type cli struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:          "reverie",
		Short:        "Ask questions about your journal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	cmd.PersistentFlags().String("env-file", "", "Path to a .env file (default: ./.env when present)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log at the configured level instead of warnings only")

	cmd.AddCommand(newAskCmd(c))
	cmd.AddCommand(newAddCmd(c))
	cmd.AddCommand(newImportCmd(c))
	cmd.AddCommand(newProfileCmd(c))
	cmd.AddCommand(newBackfillCmd(c))
	cmd.AddCommand(newBackupCmd(c))
	return cmd
}

func (c *cli) init(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		if err := os.Setenv(config.EnvPrefix+"_ENV_FILE", path); err != nil {
			return err
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Format = "console"
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		logCfg.Level = "warn"
	}
	log, err := logger.NewWithWriter(cmd.ErrOrStderr(), "reverie", logCfg)
	if err != nil {
		return err
	}

	c.cfg, c.log = cfg, log
	return nil
}

// withApp opens the services, runs fn under a context cancelled by Ctrl-C,
// and closes the services afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}
