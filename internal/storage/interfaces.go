// Package storage provides the storage interfaces for Reverie.
//
// The storage layer is split into small, focused interfaces so the query
// pipeline depends only on what it reads: EntryStore for journal entries and
// their embeddings, ProfileStore for the single user profile. The sqlite and
// postgres packages implement both.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/reverie/pkg/types"
)

// EntryStore holds journal entries and their embeddings.
type EntryStore interface {
	// Store inserts or replaces an entry (upsert by ID). The entry's
	// embedding, when present, is stored with it.
	Store(ctx context.Context, entry *types.JournalEntry) error

	// Get retrieves an entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	Get(ctx context.Context, id string) (*types.JournalEntry, error)

	// FetchByDateRange returns every entry with start <= created_at <= end,
	// newest first. No similarity filtering and no result cap are applied.
	FetchByDateRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error)

	// SimilaritySearch returns up to opts.Limit entries whose cosine
	// similarity to query is at least opts.Threshold, most similar first.
	// Entries without an embedding are never returned.
	SimilaritySearch(ctx context.Context, query []float32, opts SimilarityOptions) ([]ScoredEntry, error)

	// ListMissingEmbeddings returns up to limit entries that have no
	// embedding yet, oldest first.
	ListMissingEmbeddings(ctx context.Context, limit int) ([]types.JournalEntry, error)

	// CountMissingEmbeddings returns how many entries still lack an embedding.
	CountMissingEmbeddings(ctx context.Context) (int, error)

	// UpdateEmbedding attaches an embedding to an existing entry.
	// Returns ErrNotFound if the entry doesn't exist.
	UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string) error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ProfileStore holds the single user profile.
type ProfileStore interface {
	// LoadProfile returns the stored profile.
	// Returns ErrNotFound when no profile has been saved yet.
	LoadProfile(ctx context.Context) (*types.UserProfile, error)

	// SaveProfile replaces the stored profile.
	SaveProfile(ctx context.Context, profile *types.UserProfile) error
}

// Store is the full persistence surface one backend provides.
type Store interface {
	EntryStore
	ProfileStore
}
