package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/app"
	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/logger"
	"github.com/scrypster/reverie/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reverie-web: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New("reverie-web", cfg.Log)
	if err != nil {
		return err
	}

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close resources")
		}
	}()

	if cfg.Backup.Interval > 0 {
		snapshots, err := app.NewBackupService(cfg, log)
		if err != nil {
			return err
		}
		go snapshots.Run(ctx)
	}

	srv, addr, err := startServer(ctx, cfg, a, log)
	if err != nil {
		return err
	}
	log.Info().Msgf("Reverie API running at http://%s", addr)

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")
	return srv.Wait()
}

// startServer wires the services into the HTTP server and starts it.
func startServer(ctx context.Context, cfg *config.Config, a *app.App, log zerolog.Logger) (*server.Server, string, error) {
	srv := server.New(cfg.Server, server.Deps{
		Asker:    a.Pipeline,
		Journal:  a.Journal,
		Profiles: a.Store,
	}, log)
	addr, err := srv.Start(ctx)
	if err != nil {
		return nil, "", err
	}
	return srv, addr, nil
}
