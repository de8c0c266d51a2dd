// Package engine runs the question-answering pipeline: it chooses and
// retrieves candidate journal entries, builds the prompt and opens the
// answer stream. It also embeds new entries and backfills missing embeddings.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// Strategy names how candidate entries were selected.
type Strategy string

const (
	// StrategyDateRange fetches every entry inside an explicit date range.
	StrategyDateRange Strategy = "date_range"

	// StrategySemantic ranks entries by embedding similarity to the question.
	StrategySemantic Strategy = "semantic"
)

// RetrieverConfig tunes the semantic fallback.
type RetrieverConfig struct {
	// TopK is the maximum number of similarity hits (default: 15).
	TopK int

	// Threshold is the minimum cosine similarity (default: 0.3).
	Threshold float64

	// StorePolicy bounds retries of store calls.
	StorePolicy retry.Policy
}

// DefaultRetrieverConfig returns the default retrieval settings.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:        15,
		Threshold:   0.3,
		StorePolicy: retry.DefaultPolicy(),
	}
}

// Retriever selects the entries a question is answered from.
//
// A bounded date range is fetched exhaustively and the embedder is never
// called. Without a range the question is embedded and the top matches are
// taken from similarity search. Either way the result is ordered newest first.
type Retriever struct {
	store    storage.EntryStore
	embedder llm.EmbeddingGenerator
	cfg      RetrieverConfig
	log      zerolog.Logger
	trace    Tracer
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTracer registers a tracer for retrieval events.
func WithTracer(t Tracer) RetrieverOption {
	return func(r *Retriever) { r.trace = t }
}

// NewRetriever creates a Retriever. Non-positive TopK falls back to the default.
func NewRetriever(store storage.EntryStore, embedder llm.EmbeddingGenerator, cfg RetrieverConfig, log zerolog.Logger, opts ...RetrieverOption) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultRetrieverConfig().TopK
	}
	if cfg.StorePolicy == (retry.Policy{}) {
		cfg.StorePolicy = retry.DefaultPolicy()
	}
	r := &Retriever{store: store, embedder: embedder, cfg: cfg, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StrategyFor reports which strategy Retrieve uses for rng.
func StrategyFor(rng types.DateRange) Strategy {
	if rng.IsBounded() {
		return StrategyDateRange
	}
	return StrategySemantic
}

// Retrieve returns the candidate entries for question, newest first.
// Failures are returned as *StageError.
func (r *Retriever) Retrieve(ctx context.Context, question string, rng types.DateRange) ([]types.JournalEntry, error) {
	if err := rng.Validate(); err != nil {
		return nil, stageErr(StageParse, err)
	}

	strategy := StrategyFor(rng)
	r.emit(EventRetrievalStarted(strategy, rng.Start, rng.End))

	var (
		entries []types.JournalEntry
		err     error
	)
	switch strategy {
	case StrategyDateRange:
		entries, err = r.byDateRange(ctx, *rng.Start, rng.End)
	default:
		entries, err = r.bySimilarity(ctx, question)
	}
	if err != nil {
		return nil, err
	}
	r.emit(EventCandidatesFound(strategy, len(entries)))

	sortNewestFirst(entries)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	r.emit(EventResultsReturned(strategy, ids))
	retrievedEntries.WithLabelValues(string(strategy)).Observe(float64(len(entries)))
	return entries, nil
}

func (r *Retriever) byDateRange(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	began := time.Now()
	entries, err := retry.Do(ctx, r.cfg.StorePolicy, func(ctx context.Context) ([]types.JournalEntry, error) {
		entries, err := r.store.FetchByDateRange(ctx, start, end)
		return entries, classifyStoreErr(err)
	}, r.notify("fetch_by_date_range"))
	stageDuration.WithLabelValues(string(StageRetrieve)).Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, stageErr(StageRetrieve, fmt.Errorf("fetch by date range: %w", err))
	}
	return entries, nil
}

func (r *Retriever) bySimilarity(ctx context.Context, question string) ([]types.JournalEntry, error) {
	began := time.Now()
	vec, err := r.embedder.Embed(ctx, question)
	stageDuration.WithLabelValues(string(StageEmbed)).Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, stageErr(StageEmbed, fmt.Errorf("embed question: %w", err))
	}

	began = time.Now()
	opts := storage.SimilarityOptions{Threshold: r.cfg.Threshold, Limit: r.cfg.TopK}
	hits, err := retry.Do(ctx, r.cfg.StorePolicy, func(ctx context.Context) ([]storage.ScoredEntry, error) {
		hits, err := r.store.SimilaritySearch(ctx, vec, opts)
		return hits, classifyStoreErr(err)
	}, r.notify("similarity_search"))
	stageDuration.WithLabelValues(string(StageRetrieve)).Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, stageErr(StageRetrieve, fmt.Errorf("similarity search: %w", err))
	}

	if len(hits) > r.cfg.TopK {
		hits = hits[:r.cfg.TopK]
	}
	for _, h := range hits {
		r.emit(EventScoredCandidate(h.Entry.ID, h.Similarity))
	}
	return storage.Entries(hits), nil
}

func (r *Retriever) notify(op string) retry.Notify {
	return func(err error, wait time.Duration) {
		r.log.Warn().Err(err).Str("stage", string(StageRetrieve)).Str("op", op).Dur("wait", wait).Msg("retrying store call")
	}
}

func (r *Retriever) emit(e TraceEvent) {
	if r.trace != nil {
		r.trace(e)
	}
}

// sortNewestFirst orders entries by CreatedAt descending, keeping the input
// order of entries with equal timestamps.
func sortNewestFirst(entries []types.JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
