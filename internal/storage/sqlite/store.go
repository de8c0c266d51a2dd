// Package sqlite provides the embedded SQLite implementation of the storage
// interfaces. Similarity search ranks embeddings in Go, which is fine for a
// personal journal; use the postgres package for indexed vector search.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	mgr, err := storage.NewMigrationManager(db, storage.QuestionMark, migrations)
	if err == nil {
		_, err = mgr.Up(context.Background())
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Store creates or replaces an entry (upsert semantics).
func (s *Store) Store(ctx context.Context, entry *types.JournalEntry) error {
	if err := storage.ValidateEntry(entry); err != nil {
		return err
	}

	var blob []byte
	if entry.HasEmbedding() {
		blob = serializeEmbedding(entry.Embedding)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, content, created_at, embedding, dimension, embedding_model, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			created_at = excluded.created_at,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at`,
		entry.ID, entry.Content, toMillis(entry.CreatedAt), nullableBlob(blob),
		len(entry.Embedding), entry.EmbeddingModel, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, created_at, embedding, dimension, embedding_model
		FROM journal_entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get entry: %w", err)
	}
	return entry, nil
}

// FetchByDateRange returns every entry within [start, end], newest first.
func (s *Store) FetchByDateRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, types.ErrInvalidRange)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, dimension, embedding_model
		FROM journal_entries
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at DESC, id`,
		toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("sqlite: FetchByDateRange: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// ListMissingEmbeddings returns up to limit entries without an embedding, oldest first.
func (s *Store) ListMissingEmbeddings(ctx context.Context, limit int) ([]types.JournalEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, dimension, embedding_model
		FROM journal_entries
		WHERE embedding IS NULL
		ORDER BY created_at ASC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ListMissingEmbeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// CountMissingEmbeddings returns how many entries lack an embedding.
func (s *Store) CountMissingEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries WHERE embedding IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: CountMissingEmbeddings: %w", err)
	}
	return n, nil
}

// UpdateEmbedding attaches an embedding to an existing entry.
func (s *Store) UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries
		SET embedding = ?, dimension = ?, embedding_model = ?, updated_at = ?
		WHERE id = ?`,
		serializeEmbedding(embedding), len(embedding), model, toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update embedding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to update embedding: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.JournalEntry, error) {
	var (
		e         types.JournalEntry
		createdAt int64
		blob      []byte
		dim       int
	)
	if err := row.Scan(&e.ID, &e.Content, &createdAt, &blob, &dim, &e.EmbeddingModel); err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(createdAt)
	if len(blob) > 0 {
		vec, err := deserializeEmbedding(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Embedding = vec
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]types.JournalEntry, error) {
	entries := []types.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
