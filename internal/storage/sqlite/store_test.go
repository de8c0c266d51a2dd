package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var base = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func entryAt(id string, offset time.Duration, embedding ...float32) *types.JournalEntry {
	e := &types.JournalEntry{
		ID:        id,
		Content:   "entry " + id,
		CreatedAt: base.Add(offset),
	}
	if len(embedding) > 0 {
		e.Embedding = embedding
		e.EmbeddingModel = "test-embed"
	}
	return e
}

func TestStoreAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := entryAt("e1", 0, 0.1, 0.2, 0.3)
	require.NoError(t, store.Store(ctx, in))

	got, err := store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, in.Content, got.Content)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, in.Embedding, got.Embedding)
	assert.Equal(t, "test-embed", got.EmbeddingModel)

	// Upsert replaces content.
	in.Content = "rewritten"
	require.NoError(t, store.Store(ctx, in))
	got, err = store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Content)
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Store(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Store(ctx, &types.JournalEntry{ID: "x", CreatedAt: base}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Store(ctx, &types.JournalEntry{Content: "x", CreatedAt: base}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Store(ctx, &types.JournalEntry{ID: "x", Content: "x"}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Store(ctx, &types.JournalEntry{
		ID: "x", Content: "x", CreatedAt: base, Embedding: []float32{1},
	}), storage.ErrInvalidInput, "embedding without a model")
}

func TestFetchByDateRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Store(ctx, entryAt(fmt.Sprintf("d%d", i), time.Duration(i)*24*time.Hour)))
	}

	// Both bounds are inclusive.
	got, err := store.FetchByDateRange(ctx, base.Add(24*time.Hour), base.Add(3*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d3", got[0].ID, "newest first")
	assert.Equal(t, "d2", got[1].ID)
	assert.Equal(t, "d1", got[2].ID)

	got, err = store.FetchByDateRange(ctx, base.AddDate(1, 0, 0), base.AddDate(2, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = store.FetchByDateRange(ctx, base.Add(time.Hour), base)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestFetchByDateRange_NoCap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		require.NoError(t, store.Store(ctx, entryAt(fmt.Sprintf("n%02d", i), time.Duration(i)*time.Minute)))
	}

	got, err := store.FetchByDateRange(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestSimilaritySearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, entryAt("same", 0, 1, 0, 0)))
	require.NoError(t, store.Store(ctx, entryAt("close", time.Hour, 0.9, 0.1, 0)))
	require.NoError(t, store.Store(ctx, entryAt("orthogonal", 2*time.Hour, 0, 1, 0)))
	require.NoError(t, store.Store(ctx, entryAt("no-embedding", 3*time.Hour)))
	require.NoError(t, store.Store(ctx, entryAt("other-dim", 4*time.Hour, 1, 0)))

	hits, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, storage.SimilarityOptions{Threshold: 0.3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "same", hits[0].Entry.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "close", hits[1].Entry.ID)

	hits, err = store.SimilaritySearch(ctx, []float32{1, 0, 0}, storage.SimilarityOptions{Threshold: -1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "same", hits[0].Entry.ID)

	_, err = store.SimilaritySearch(ctx, nil, storage.SimilarityOptions{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSimilaritySearch_CorruptEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, entryAt("good", 0, 1, 0, 0)))
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, content, created_at, embedding, dimension, embedding_model, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"torn", "entry torn", base.Add(time.Hour).UnixMilli(), []byte{1, 2, 3, 4, 5}, 3, "test-embed", base.UnixMilli())
	require.NoError(t, err)

	_, err = store.SimilaritySearch(ctx, []float32{1, 0, 0}, storage.SimilarityOptions{Threshold: -1, Limit: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "torn")
}

func TestMissingEmbeddings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, entryAt("late", 2*time.Hour)))
	require.NoError(t, store.Store(ctx, entryAt("early", 0)))
	require.NoError(t, store.Store(ctx, entryAt("done", time.Hour, 1, 1)))

	n, err := store.CountMissingEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	missing, err := store.ListMissingEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "early", missing[0].ID, "oldest first")

	require.NoError(t, store.UpdateEmbedding(ctx, "early", []float32{0.5, 0.5}, "test-embed"))
	n, err = store.CountMissingEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, got.Embedding)

	assert.ErrorIs(t, store.UpdateEmbedding(ctx, "ghost", []float32{1}, "m"), storage.ErrNotFound)
	assert.ErrorIs(t, store.UpdateEmbedding(ctx, "late", nil, "m"), storage.ErrInvalidInput)
	_, err = store.ListMissingEmbeddings(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LoadProfile(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	profile := &types.UserProfile{
		Background: "Engineer in Lisbon",
		Goals:      "Run a marathon",
		NameMappings: []types.NameMapping{
			{Name: "Ana", Description: "sister"},
		},
	}
	require.NoError(t, store.SaveProfile(ctx, profile))

	got, err := store.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	// A second save replaces the single row.
	require.NoError(t, store.SaveProfile(ctx, &types.UserProfile{Other: "likes tea"}))
	got, err = store.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "likes tea", got.Other)
	assert.Empty(t, got.Background)
	assert.Empty(t, got.NameMappings)
}

func TestNewStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reverie.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), entryAt("persisted", 0)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NoError(t, reopened.Ping(context.Background()))
	_, err = reopened.Get(context.Background(), "persisted")
	assert.NoError(t, err)
}

func TestEmbeddingCodec(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := deserializeEmbedding(serializeEmbedding(vec), len(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = deserializeEmbedding([]byte{1, 2, 3}, 1)
	assert.Error(t, err)
	_, err = deserializeEmbedding(nil, 0)
	assert.Error(t, err)
}
