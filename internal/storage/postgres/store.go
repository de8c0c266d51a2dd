// Package postgres provides a PostgreSQL implementation of storage interfaces.
// Similarity search runs inside the database through the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// Store implements storage.Store using PostgreSQL and pgvector.
type Store struct {
	db        *sql.DB
	dimension int
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)

// NewStore connects to dsn and applies the schema. dimension is the width of
// the embedding column and must match the configured embedding model.
func NewStore(dsn string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", storage.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	mgr, err := storage.NewMigrationManager(db, storage.Dollar, migrations(dimension))
	if err == nil {
		_, err = mgr.Up(context.Background())
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	return &Store{db: db, dimension: dimension}, nil
}

// Store creates or replaces an entry (upsert semantics).
func (s *Store) Store(ctx context.Context, entry *types.JournalEntry) error {
	if err := storage.ValidateEntry(entry); err != nil {
		return err
	}

	var vec any
	if entry.HasEmbedding() {
		if err := s.checkDimension(entry.Embedding); err != nil {
			return err
		}
		vec = pgvector.NewVector(entry.Embedding)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, content, created_at, embedding, embedding_model, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model,
			updated_at = NOW()`,
		entry.ID, entry.Content, entry.CreatedAt.UTC(), vec, entry.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("postgres: failed to store entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, created_at, embedding, embedding_model
		FROM journal_entries WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get entry: %w", err)
	}
	return entry, nil
}

// FetchByDateRange returns every entry within [start, end], newest first.
func (s *Store) FetchByDateRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, types.ErrInvalidRange)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, embedding_model
		FROM journal_entries
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC, id`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: FetchByDateRange: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// SimilaritySearch orders by cosine distance (<=>) and keeps hits whose
// similarity, 1 - distance, reaches the threshold.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, opts storage.SimilarityOptions) ([]storage.ScoredEntry, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", storage.ErrInvalidInput)
	}
	if err := s.checkDimension(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, embedding_model,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM journal_entries
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`,
		pgvector.NewVector(query), opts.Threshold, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: similarity search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []storage.ScoredEntry{}
	for rows.Next() {
		var (
			e   types.JournalEntry
			vec *pgvector.Vector
			sim float64
		)
		if err := rows.Scan(&e.ID, &e.Content, &e.CreatedAt, &vec, &e.EmbeddingModel, &sim); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan hit: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		if vec != nil {
			e.Embedding = vec.Slice()
		}
		hits = append(hits, storage.ScoredEntry{Entry: e, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating hits: %w", err)
	}
	return hits, nil
}

// ListMissingEmbeddings returns up to limit entries without an embedding, oldest first.
func (s *Store) ListMissingEmbeddings(ctx context.Context, limit int) ([]types.JournalEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, embedding_model
		FROM journal_entries
		WHERE embedding IS NULL
		ORDER BY created_at ASC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: ListMissingEmbeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// CountMissingEmbeddings returns how many entries lack an embedding.
func (s *Store) CountMissingEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries WHERE embedding IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: CountMissingEmbeddings: %w", err)
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
	if err := s.checkDimension(embedding); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries
		SET embedding = $1, embedding_model = $2, updated_at = NOW()
		WHERE id = $3`,
		pgvector.NewVector(embedding), model, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update embedding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to update embedding: %w", err)
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

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// TruncateForTest removes every entry and the profile. It is exported so the
// postgres_test package can reset state between tests.
func (s *Store) TruncateForTest(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE journal_entries, user_profile"); err != nil {
		return fmt.Errorf("postgres: failed to truncate: %w", err)
	}
	return nil
}

func (s *Store) checkDimension(vec []float32) error {
	if len(vec) != s.dimension {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d",
			storage.ErrInvalidInput, len(vec), s.dimension)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.JournalEntry, error) {
	var (
		e   types.JournalEntry
		vec *pgvector.Vector
	)
	if err := row.Scan(&e.ID, &e.Content, &e.CreatedAt, &vec, &e.EmbeddingModel); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if vec != nil {
		e.Embedding = vec.Slice()
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]types.JournalEntry, error) {
	entries := []types.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
