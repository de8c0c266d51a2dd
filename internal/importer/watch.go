package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a new file must stay quiet before it is read.
// Editors often create a file and then write it in several steps.
const settleDelay = 300 * time.Millisecond

// FileImported is called after each file picked up by Watch.
type FileImported func(relativePath string, result *Result)

// Watch imports Markdown files created under dir until ctx is cancelled.
// Files that already exist are left alone (run Import for those), and each
// path is imported at most once per call so saving a note twice does not
// duplicate it.
func (imp *Importer) Watch(ctx context.Context, dir string, onFile FileImported) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := addDirs(w, dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	imp.log.Info().Str("dir", dir).Msg("watching for new journal files")

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		seen    = make(map[string]bool)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	// schedule starts the settle timer for a created file and pushes it back
	// on later writes. Writes to files that were not created during this
	// watch are ignored.
	schedule := func(path string, created bool) {
		mu.Lock()
		defer mu.Unlock()
		if seen[path] {
			return
		}
		if t, ok := pending[path]; ok {
			// A timer that already fired is importing the file now.
			if t.Stop() {
				t.Reset(settleDelay)
			}
			return
		}
		if !created {
			return
		}
		wg.Add(1)
		pending[path] = time.AfterFunc(settleDelay, func() {
			defer wg.Done()
			mu.Lock()
			delete(pending, path)
			seen[path] = true
			mu.Unlock()

			rel, _ := filepath.Rel(dir, path)
			result := &Result{FilesFound: 1}
			started := time.Now()
			imp.importFile(ctx, path, rel, result)
			result.Duration = time.Since(started)
			if onFile != nil {
				onFile(rel, result)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
				continue
			}
			fi, err := os.Stat(evt.Name)
			if err != nil {
				continue // removed again before we looked
			}
			if fi.IsDir() {
				if evt.Has(fsnotify.Create) && !isHidden(fi.Name()) {
					if err := addDirs(w, evt.Name); err != nil {
						imp.log.Warn().Err(err).Str("dir", evt.Name).Msg("watch: cannot watch new directory")
					}
				}
				continue
			}
			if isMarkdown(evt.Name) && !isHidden(filepath.Base(evt.Name)) {
				schedule(evt.Name, evt.Has(fsnotify.Create))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			imp.log.Warn().Err(err).Msg("watch: watcher error")
		}
	}
}

// addDirs watches root and every non-hidden directory below it.
func addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}
