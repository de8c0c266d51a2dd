package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

var now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestRetriever(store *fakeStore, emb *fakeEmbedder, opts ...RetrieverOption) *Retriever {
	cfg := RetrieverConfig{TopK: 15, Threshold: 0.3, StorePolicy: fastPolicy}
	return NewRetriever(store, emb, cfg, zerolog.Nop(), opts...)
}

func TestRetrieve_DateRangeNeverEmbeds(t *testing.T) {
	store := &fakeStore{rangeEntries: []types.JournalEntry{
		entry("old", now.AddDate(0, 0, -6)),
		entry("new", now.AddDate(0, 0, -1)),
		entry("mid", now.AddDate(0, 0, -3)),
	}}
	emb := &fakeEmbedder{vec: []float32{1}}
	r := newTestRetriever(store, emb)

	rng := types.NewDateRange(now.AddDate(0, 0, -7), now)
	got, err := r.Retrieve(context.Background(), "What happened last week?", rng)
	require.NoError(t, err)

	assert.Equal(t, 0, emb.calls, "date-bounded retrieval must not embed")
	assert.Equal(t, 0, store.searchCalls)
	assert.Equal(t, 1, store.fetchCalls)
	assert.True(t, store.lastStart.Equal(*rng.Start))
	assert.True(t, store.lastEnd.Equal(now))

	require.Len(t, got, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRetrieve_SemanticNeverFetchesRange(t *testing.T) {
	store := &fakeStore{hits: []storage.ScoredEntry{
		{Entry: entry("best", now.AddDate(0, -2, 0)), Similarity: 0.9},
		{Entry: entry("recent", now.AddDate(0, 0, -1)), Similarity: 0.5},
	}}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	r := newTestRetriever(store, emb)

	got, err := r.Retrieve(context.Background(), "Tell me about my productivity", types.OpenRange(now))
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, []string{"Tell me about my productivity"}, emb.texts)
	assert.Equal(t, 1, store.searchCalls)
	assert.Equal(t, 0, store.fetchCalls, "semantic retrieval must not fetch by range")
	assert.Equal(t, storage.SimilarityOptions{Threshold: 0.3, Limit: 15}, store.lastOpts)

	// Re-sorted by time, not by similarity.
	require.Len(t, got, 2)
	assert.Equal(t, "recent", got[0].ID)
	assert.Equal(t, "best", got[1].ID)
}

func TestRetrieve_StableForEqualTimes(t *testing.T) {
	store := &fakeStore{rangeEntries: []types.JournalEntry{
		entry("a", now), entry("b", now), entry("c", now),
	}}
	r := newTestRetriever(store, &fakeEmbedder{})

	got, err := r.Retrieve(context.Background(), "today", types.NewDateRange(now.Add(-time.Hour), now))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	store := &fakeStore{}
	r := newTestRetriever(store, &fakeEmbedder{err: errTransient})

	_, err := r.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.Error(t, err)
	assert.Equal(t, StageEmbed, StageOf(err))
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 0, store.searchCalls)
}

func TestRetrieve_RetriesTransientStoreErrors(t *testing.T) {
	store := &fakeStore{
		rangeErrs:    []error{errTransient, errTransient},
		rangeEntries: []types.JournalEntry{entry("x", now)},
	}
	r := newTestRetriever(store, &fakeEmbedder{})

	got, err := r.Retrieve(context.Background(), "today", types.NewDateRange(now.Add(-time.Hour), now))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, store.fetchCalls)
}

func TestRetrieve_DoesNotRetryInvalidInput(t *testing.T) {
	store := &fakeStore{searchErr: storage.ErrInvalidInput}
	r := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}})

	_, err := r.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.Error(t, err)
	assert.Equal(t, StageRetrieve, StageOf(err))
	assert.Equal(t, 1, store.searchCalls)
}

func TestRetrieve_CapsSemanticHits(t *testing.T) {
	var hits []storage.ScoredEntry
	for i := 0; i < 5; i++ {
		hits = append(hits, storage.ScoredEntry{Entry: entry(string(rune('a'+i)), now.Add(time.Duration(i)*time.Minute)), Similarity: 0.9})
	}
	store := &fakeStore{hits: hits}
	r := NewRetriever(store, &fakeEmbedder{vec: []float32{1}}, RetrieverConfig{TopK: 2, Threshold: 0.3, StorePolicy: fastPolicy}, zerolog.Nop())

	got, err := r.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieve_InvalidRange(t *testing.T) {
	store := &fakeStore{}
	r := newTestRetriever(store, &fakeEmbedder{})

	_, err := r.Retrieve(context.Background(), "x", types.NewDateRange(now.Add(time.Hour), now))
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	assert.Equal(t, 0, store.fetchCalls)
}

func TestRetrieve_Trace(t *testing.T) {
	store := &fakeStore{hits: []storage.ScoredEntry{{Entry: entry("h", now), Similarity: 0.8}}}
	var events []TraceEvent
	r := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}}, WithTracer(func(e TraceEvent) { events = append(events, e) }))

	_, err := r.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.NoError(t, err)

	kinds := make([]TraceEventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []TraceEventKind{KindRetrievalStarted, KindScoredCandidate, KindCandidatesFound, KindResultsReturned}, kinds)
	assert.Equal(t, StrategySemantic, events[0].Strategy)
	assert.InDelta(t, 0.8, events[1].Similarity, 1e-9)
	assert.Equal(t, []string{"h"}, events[3].EntryIDs)
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{hits: []storage.ScoredEntry{{Entry: entry("h", now), Similarity: 0.8}}}
	r := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}}, WithTracer(LogTracer(zerolog.New(&buf))))

	_, err := r.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	var scored map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &scored))
	assert.Equal(t, "debug", scored["level"])
	assert.Equal(t, string(KindScoredCandidate), scored["event"])
	assert.Equal(t, "h", scored["entry_id"])
	assert.Contains(t, lines[3], `"count":1`)

	buf.Reset()
	quiet := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}},
		WithTracer(LogTracer(zerolog.New(&buf).Level(zerolog.InfoLevel))))
	_, err = quiet.Retrieve(context.Background(), "anything", types.OpenRange(now))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, StrategySemantic, StrategyFor(types.OpenRange(now)))
	assert.Equal(t, StrategyDateRange, StrategyFor(types.NewDateRange(now, now)))
}
