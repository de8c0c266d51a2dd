package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// fastPolicy retries quickly so failure tests stay fast.
var fastPolicy = retry.Policy{
	InitialInterval: time.Millisecond,
	MaxInterval:     time.Millisecond,
	MaxAttempts:     3,
}

// fakeStore records calls and serves canned results.
type fakeStore struct {
	mu sync.Mutex

	rangeEntries []types.JournalEntry
	rangeErrs    []error // consumed one per call
	hits         []storage.ScoredEntry
	searchErr    error
	profile      *types.UserProfile
	profileErr   error

	fetchCalls  int
	searchCalls int
	lastStart   time.Time
	lastEnd     time.Time
	lastOpts    storage.SimilarityOptions
}

func (f *fakeStore) Store(context.Context, *types.JournalEntry) error { return nil }

func (f *fakeStore) Get(context.Context, string) (*types.JournalEntry, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeStore) FetchByDateRange(_ context.Context, start, end time.Time) ([]types.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	f.lastStart, f.lastEnd = start, end
	if len(f.rangeErrs) > 0 {
		err := f.rangeErrs[0]
		f.rangeErrs = f.rangeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]types.JournalEntry(nil), f.rangeEntries...), nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ []float32, opts storage.SimilarityOptions) ([]storage.ScoredEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]storage.ScoredEntry(nil), f.hits...), nil
}

func (f *fakeStore) ListMissingEmbeddings(context.Context, int) ([]types.JournalEntry, error) {
	return nil, nil
}

func (f *fakeStore) CountMissingEmbeddings(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) UpdateEmbedding(context.Context, string, []float32, string) error { return nil }

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) LoadProfile(context.Context) (*types.UserProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile == nil {
		return nil, storage.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeStore) SaveProfile(_ context.Context, p *types.UserProfile) error {
	f.profile = p
	return nil
}

// fakeEmbedder returns a fixed vector or error.
type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-embed" }

// fakeStreamer plays back chunks on an unbuffered channel.
type fakeStreamer struct {
	chunks     []llm.Chunk
	openErr    error
	calls      int
	transcript types.Transcript
}

func (f *fakeStreamer) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan llm.Chunk, error) {
	f.calls++
	f.transcript = transcript
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeStreamer) GetModel() string { return "fake-chat" }

func answer(parts ...string) []llm.Chunk {
	out := make([]llm.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, llm.Chunk{Content: p})
	}
	return append(out, llm.Chunk{Done: true})
}

var errTransient = errors.New("connection refused")

func entry(id string, at time.Time) types.JournalEntry {
	return types.JournalEntry{ID: id, Content: "content " + id, CreatedAt: at}
}
