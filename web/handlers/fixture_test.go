package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/dateparse"
	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/prompt"
	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/internal/storage/sqlite"
	"github.com/scrypster/reverie/pkg/types"
)

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

var errUpstream = errors.New("upstream unavailable")

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) GetModel() string { return "stub-embed" }

// stubStreamer plays back parts, optionally ending with an error chunk.
type stubStreamer struct {
	parts   []string
	tailErr error
	openErr error
	last    types.Transcript
}

func (s *stubStreamer) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan llm.Chunk, error) {
	s.last = transcript
	if s.openErr != nil {
		return nil, s.openErr
	}
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		send := func(c llm.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range s.parts {
			if !send(llm.Chunk{Content: p}) {
				return
			}
		}
		if s.tailErr != nil {
			send(llm.Chunk{Err: s.tailErr})
			return
		}
		send(llm.Chunk{Done: true})
	}()
	return out, nil
}

func (s *stubStreamer) GetModel() string { return "stub-chat" }

// fixture wires the real engine to an in-memory store and stub providers.
type fixture struct {
	store    *sqlite.Store
	embedder *stubEmbedder
	streamer *stubStreamer
	pipeline *engine.Pipeline
	journal  *engine.Journal
	router   *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:    store,
		embedder: &stubEmbedder{},
		streamer: &stubStreamer{parts: []string{"You ", "felt ", "calm."}},
	}
	clock := func() time.Time { return fixedNow }
	log := zerolog.Nop()

	retriever := engine.NewRetriever(store, f.embedder,
		engine.RetrieverConfig{TopK: 15, Threshold: 0.3, StorePolicy: retry.NoRetry()}, log)
	f.pipeline = engine.NewPipeline(
		dateparse.NewParser(),
		retriever,
		store,
		prompt.NewBuilder(prompt.WithLocation(time.UTC)),
		f.streamer,
		log,
		engine.WithClock(clock),
	)
	f.journal = engine.NewJournal(store, f.embedder, log,
		engine.WithJournalClock(clock), engine.WithStorePolicy(retry.NoRetry()))

	journal := NewJournalHandlers(f.journal, log)
	journal.clock = clock
	profile := NewContextHandlers(store, log)
	maintenance := NewMaintenanceHandler(f.journal, log)

	r := mux.NewRouter()
	r.Handle("/api/query", NewQueryHandler(f.pipeline, log)).Methods(http.MethodPost)
	r.Handle("/api/query/ws", NewQuerySocket(f.pipeline, nil, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/journal", journal.CreateEntry).Methods(http.MethodPost)
	r.HandleFunc("/api/journal", journal.ListEntries).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", journal.CreateSummary).Methods(http.MethodPost)
	r.HandleFunc("/api/context", profile.GetContext).Methods(http.MethodGet)
	r.HandleFunc("/api/context", profile.PutContext).Methods(http.MethodPut)
	r.HandleFunc("/api/health", maintenance.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/backfill", maintenance.Backfill).Methods(http.MethodPost)
	f.router = r
	return f
}

func (f *fixture) addEntry(t *testing.T, content string, at time.Time) *types.JournalEntry {
	t.Helper()
	e, _, err := f.journal.AddEntry(context.Background(), content, at)
	require.NoError(t, err)
	return e
}
