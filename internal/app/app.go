// Package app assembles Reverie's services from configuration. Both the web
// server and the CLI start from Open.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/backup"
	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/dateparse"
	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/prompt"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/internal/storage/postgres"
	"github.com/scrypster/reverie/internal/storage/sqlite"
	"github.com/scrypster/reverie/pkg/types"
)

// SQLiteFile is the database file name inside Storage.DataPath.
const SQLiteFile = "reverie.db"

// App holds the long-lived services. Close releases them.
type App struct {
	Store    storage.Store
	Embedder llm.EmbeddingGenerator
	Streamer llm.ChatStreamer
	Pipeline *engine.Pipeline
	Journal  *engine.Journal

	redis *redis.Client
	log   zerolog.Logger
}

// Open connects to storage and the model providers described by cfg.
//
// The Redis embedding cache is optional: when Redis.URL is set but the
// server cannot be reached, Open logs a warning and continues uncached.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	a := &App{Store: store, log: log}

	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: embedding provider: %w", err)
	}
	direct := embedder
	if cfg.Redis.URL != "" {
		client, err := llm.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("embedding cache disabled")
		} else {
			a.redis = client
			embedder = llm.NewCachedEmbedder(embedder, client, cfg.Redis.TTL, log)
			log.Info().Dur("ttl", cfg.Redis.TTL).Msg("embedding cache enabled")
		}
	}
	a.Embedder = embedder

	streamer, err := llm.NewChatStreamer(cfg.LLM, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: chat provider: %w", err)
	}
	a.Streamer = streamer

	defaultMode, err := types.ParseMode(cfg.Retrieval.DefaultMode)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: default mode: %w", err)
	}

	storePolicy := llm.RetryPolicy(cfg.LLM)
	retriever := engine.NewRetriever(store, embedder, engine.RetrieverConfig{
		TopK:        cfg.Retrieval.TopK,
		Threshold:   cfg.Retrieval.Threshold,
		StorePolicy: storePolicy,
	}, log, engine.WithTracer(engine.LogTracer(log)))

	a.Pipeline = engine.NewPipeline(
		dateparse.NewParser(),
		retriever,
		store,
		prompt.NewBuilder(prompt.WithHistoryWindow(cfg.Retrieval.HistoryWindow)),
		streamer,
		log,
		engine.WithDefaultMode(defaultMode),
	)
	a.Journal = engine.NewJournal(store, embedder, log,
		engine.WithStorePolicy(storePolicy),
		engine.WithHealthEmbedder(direct),
	)

	log.Info().
		Str("engine", cfg.Storage.Engine).
		Str("chat_model", streamer.GetModel()).
		Str("embedding_model", embedder.GetModel()).
		Str("default_mode", string(defaultMode)).
		Msg("reverie ready")
	return a, nil
}

// OpenStore opens the configured storage engine.
func OpenStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Engine {
	case "sqlite", "":
		if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
			return nil, fmt.Errorf("app: create data directory: %w", err)
		}
		store, err := sqlite.NewStore(filepath.Join(cfg.DataPath, SQLiteFile))
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := postgres.NewStore(cfg.PostgresDSN, cfg.Dimension)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unsupported storage engine %q", cfg.Engine)
	}
}

// NewBackupService returns the snapshot service for the SQLite journal.
// Postgres deployments should use the database's own tooling.
func NewBackupService(cfg *config.Config, log zerolog.Logger) (*backup.Service, error) {
	if cfg.Storage.Engine != "sqlite" && cfg.Storage.Engine != "" {
		return nil, fmt.Errorf("app: backups are only supported for the sqlite engine, not %q", cfg.Storage.Engine)
	}
	return backup.NewService(filepath.Join(cfg.Storage.DataPath, SQLiteFile), backup.Config{
		Dir:      cfg.SnapshotDir(),
		Interval: cfg.Backup.Interval,
		Retention: backup.RetentionPolicy{
			Hourly:  cfg.Backup.KeepHourly,
			Daily:   cfg.Backup.KeepDaily,
			Weekly:  cfg.Backup.KeepWeekly,
			Monthly: cfg.Backup.KeepMonthly,
		},
	}, log)
}

// Close releases the store and the cache connection.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
