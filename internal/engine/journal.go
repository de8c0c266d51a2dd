package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// Backfill limits.
const (
	DefaultBackfillLimit = 20
	MaxBackfillLimit     = 100
)

// HealthCheckText is embedded by Health to check the embedding service.
const HealthCheckText = "Hello world"

// Journal writes entries and keeps their embeddings up to date.
type Journal struct {
	store    storage.EntryStore
	embedder llm.EmbeddingGenerator
	checker  llm.EmbeddingGenerator
	policy   retry.Policy
	workers  int
	clock    func() time.Time
	log      zerolog.Logger
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithBackfillWorkers sets how many entries are embedded concurrently (default: 4).
func WithBackfillWorkers(n int) JournalOption {
	return func(j *Journal) {
		if n > 0 {
			j.workers = n
		}
	}
}

// WithJournalClock overrides the time source used for default entry times.
func WithJournalClock(clock func() time.Time) JournalOption {
	return func(j *Journal) { j.clock = clock }
}

// WithStorePolicy sets the retry policy for store writes.
func WithStorePolicy(p retry.Policy) JournalOption {
	return func(j *Journal) { j.policy = p }
}

// WithHealthEmbedder sets the generator Health embeds through, normally the
// provider without the cache layer. It defaults to the journal's embedder.
func WithHealthEmbedder(e llm.EmbeddingGenerator) JournalOption {
	return func(j *Journal) { j.checker = e }
}

// NewJournal creates a Journal.
func NewJournal(store storage.EntryStore, embedder llm.EmbeddingGenerator, log zerolog.Logger, opts ...JournalOption) *Journal {
	j := &Journal{
		store:    store,
		embedder: embedder,
		policy:   retry.DefaultPolicy(),
		workers:  4,
		clock:    time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.checker == nil {
		j.checker = embedder
	}
	return j
}

// AddEntry stores a new entry. createdAt defaults to now when zero.
//
// The entry is embedded before it is written. If the embedding service is
// unavailable the entry is still saved without an embedding so nothing the
// user wrote is lost; Backfill embeds it later. Embedded reports which case
// happened.
func (j *Journal) AddEntry(ctx context.Context, content string, createdAt time.Time) (entry *types.JournalEntry, embedded bool, err error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false, validationErr("content is required")
	}
	if createdAt.IsZero() {
		createdAt = j.clock()
	}

	entry = &types.JournalEntry{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: createdAt.UTC(),
	}

	vec, embedErr := j.embedder.Embed(ctx, content)
	if embedErr != nil {
		j.log.Warn().Err(embedErr).Str("stage", string(StageEmbed)).Str("entry_id", entry.ID).
			Msg("storing entry without embedding")
	} else {
		entry.Embedding = vec
		entry.EmbeddingModel = j.embedder.GetModel()
	}

	if err := j.write(ctx, func(ctx context.Context) error { return j.store.Store(ctx, entry) }); err != nil {
		return nil, false, stageErr(StageStore, fmt.Errorf("store entry: %w", err))
	}

	j.log.Info().Str("entry_id", entry.ID).Time("created_at", entry.CreatedAt).Bool("embedded", embedErr == nil).Msg("entry stored")
	return entry, embedErr == nil, nil
}

// ListEntries returns the entries in [start, end], newest first.
func (j *Journal) ListEntries(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	if start.After(end) {
		return nil, validationErr("start must not be after end")
	}
	entries, err := j.store.FetchByDateRange(ctx, start, end)
	if err != nil {
		return nil, stageErr(StageRetrieve, err)
	}
	return entries, nil
}

// BackfillResult summarises one backfill run.
type BackfillResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Backfill embeds up to limit entries that have no embedding yet, oldest
// first, using a small worker pool. limit must be within 1..MaxBackfillLimit.
func (j *Journal) Backfill(ctx context.Context, limit int) (BackfillResult, error) {
	if limit < 1 || limit > MaxBackfillLimit {
		return BackfillResult{}, validationErr("limit must be between 1 and %d", MaxBackfillLimit)
	}

	pending, err := j.store.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return BackfillResult{}, stageErr(StageRetrieve, err)
	}

	jobs := make(chan types.JournalEntry)
	var (
		mu     sync.Mutex
		result BackfillResult
		wg     sync.WaitGroup
	)

	workers := j.workers
	if workers > len(pending) {
		workers = len(pending)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for entry := range jobs {
				err := j.embedEntry(ctx, entry)

				mu.Lock()
				if err != nil {
					result.Failed++
				} else {
					result.Processed++
				}
				mu.Unlock()

				if err != nil {
					backfillEntries.WithLabelValues("failed").Inc()
					j.log.Warn().Err(err).Int("worker", workerID).Str("entry_id", entry.ID).Msg("backfill failed")
				} else {
					backfillEntries.WithLabelValues("embedded").Inc()
				}
			}
		}(w)
	}

feed:
	for _, entry := range pending {
		select {
		case jobs <- entry:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	remaining, err := j.store.CountMissingEmbeddings(ctx)
	if err != nil {
		return result, stageErr(StageRetrieve, err)
	}
	result.Remaining = remaining

	j.log.Info().Int("processed", result.Processed).Int("failed", result.Failed).Int("remaining", remaining).Msg("backfill finished")
	return result, nil
}

func (j *Journal) embedEntry(ctx context.Context, entry types.JournalEntry) error {
	vec, err := j.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return stageErr(StageEmbed, err)
	}
	model := j.embedder.GetModel()
	if err := j.write(ctx, func(ctx context.Context) error {
		return j.store.UpdateEmbedding(ctx, entry.ID, vec, model)
	}); err != nil {
		return stageErr(StageStore, err)
	}
	return nil
}

// HealthReport is the result of a connectivity check.
type HealthReport struct {
	Store              string `json:"store"`
	Embedding          string `json:"embedding"`
	EmbeddingModel     string `json:"embedding_model"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`
}

// Healthy reports whether every dependency answered.
func (h HealthReport) Healthy() bool {
	return h.Store == "ok" && h.Embedding == "ok"
}

// Health pings the store and embeds a fixed sentence.
func (j *Journal) Health(ctx context.Context) HealthReport {
	report := HealthReport{Store: "ok", Embedding: "ok", EmbeddingModel: j.checker.GetModel()}

	if err := j.store.Ping(ctx); err != nil {
		report.Store = "error"
		j.log.Error().Err(err).Str("stage", string(StageStore)).Msg("health check: store unreachable")
	}

	vec, err := j.checker.Embed(ctx, HealthCheckText)
	if err != nil {
		report.Embedding = "error"
		j.log.Error().Err(err).Str("stage", string(StageEmbed)).Msg("health check: embedding failed")
	} else {
		report.EmbeddingDimension = len(vec)
	}
	return report
}

func (j *Journal) write(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, j.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, classifyStoreErr(op(ctx))
	}, func(err error, wait time.Duration) {
		j.log.Warn().Err(err).Str("stage", string(StageStore)).Dur("wait", wait).Msg("retrying store write")
	})
	return err
}
