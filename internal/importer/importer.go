package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/pkg/types"
)

// EntryAdder stores one journal entry. engine.Journal implements it.
type EntryAdder interface {
	AddEntry(ctx context.Context, content string, createdAt time.Time) (*types.JournalEntry, bool, error)
}

// Result is the summary of one import run.
type Result struct {
	FilesFound     int           `json:"files_found"`
	EntriesCreated int           `json:"entries_created"`
	Unembedded     int           `json:"unembedded"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
}

// Progress is reported after each file.
type Progress func(done, total int, relativePath string)

// Importer walks a directory of Markdown files and adds each as an entry.
type Importer struct {
	journal  EntryAdder
	location *time.Location
	log      zerolog.Logger
}

// New creates an Importer. Dates without a zone are read in loc (nil: local time).
func New(journal EntryAdder, loc *time.Location, log zerolog.Logger) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{journal: journal, location: loc, log: log}
}

// Import reads every .md/.markdown file under dir. Hidden directories such as
// .obsidian are skipped. Files that fail are counted and the run continues;
// the returned error is only set when dir cannot be walked.
func (imp *Importer) Import(ctx context.Context, dir string, progress Progress) (*Result, error) {
	started := time.Now()

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}

	files, err := collectMarkdownFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	result := &Result{FilesFound: len(files)}
	for i, absPath := range files {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		rel, _ := filepath.Rel(dir, absPath)
		imp.importFile(ctx, absPath, rel, result)
		if progress != nil {
			progress(i+1, len(files), rel)
		}
	}

	result.Duration = time.Since(started)
	imp.log.Info().
		Int("files", result.FilesFound).
		Int("created", result.EntriesCreated).
		Int("skipped", result.FilesSkipped).
		Int("failed", result.FilesFailed).
		Dur("duration", result.Duration).
		Msg("import finished")
	return result, nil
}

func (imp *Importer) importFile(ctx context.Context, absPath, rel string, result *Result) {
	fail := func(format string, err error) {
		imp.log.Warn().Err(err).Str("file", rel).Msg("import: " + format)
		result.FilesFailed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s: %v", rel, format, err))
	}

	info, err := os.Stat(absPath)
	if err != nil {
		fail("stat error", err)
		return
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		fail("read error", err)
		return
	}
	if strings.TrimSpace(string(data)) == "" {
		result.FilesSkipped++
		return
	}

	parsed, err := ParseJournalFile(data, rel, info.ModTime(), imp.location)
	if err != nil {
		fail("parse error", err)
		return
	}
	if parsed.Content == "" {
		result.FilesSkipped++
		return
	}

	_, embedded, err := imp.journal.AddEntry(ctx, parsed.Content, parsed.CreatedAt)
	if err != nil {
		fail("store error", err)
		return
	}
	result.EntriesCreated++
	if !embedded {
		result.Unembedded++
	}
}

// collectMarkdownFiles walks dirPath and returns all .md / .markdown files found.
// Obsidian hidden directories (e.g. .obsidian) are skipped.
func collectMarkdownFiles(dirPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dirPath && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isMarkdown(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
