package importer_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/importer"
)

func (r *recordingJournal) contents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Content)
	}
	return out
}

func TestWatch_ImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.md", "Already here.")

	journal := &recordingJournal{}
	imp := importer.New(journal, time.UTC, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu       sync.Mutex
		imported []string
	)
	done := make(chan error, 1)
	go func() {
		done <- imp.Watch(ctx, dir, func(rel string, res *importer.Result) {
			mu.Lock()
			defer mu.Unlock()
			imported = append(imported, rel)
			assert.Equal(t, 1, res.EntriesCreated)
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "2024-05-02.md", "Planted tomatoes.")
	writeFile(t, dir, "skip.txt", "not markdown")

	require.Eventually(t, func() bool {
		return len(journal.contents()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	// A second save of the same note is not imported again.
	writeFile(t, dir, "2024-05-02.md", "Planted tomatoes and basil.")
	// Editing a note that predates the watch does not import it either.
	writeFile(t, dir, "old.md", "Already here, edited.")
	time.Sleep(600 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"Planted tomatoes."}, journal.contents())
	mu.Lock()
	assert.Equal(t, []string{"2024-05-02.md"}, imported)
	mu.Unlock()
}

func TestWatch_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	journal := &recordingJournal{}
	imp := importer.New(journal, time.UTC, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = imp.Watch(ctx, dir, nil) }()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "trips/lisbon.md", "---\ndate: 2024-04-10\n---\nTram 28.")

	// The directory may be registered after the file lands; write once more
	// so the watcher sees it either way.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, filepath.Join("trips", "porto.md"), "---\ndate: 2024-04-12\n---\nBridges.")

	require.Eventually(t, func() bool {
		for _, c := range journal.contents() {
			if c == "Bridges." {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_MissingDirectory(t *testing.T) {
	imp := importer.New(&recordingJournal{}, time.UTC, zerolog.Nop())
	err := imp.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}
