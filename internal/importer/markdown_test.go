package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mtime = time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

func TestParseJournalFile_FrontmatterDate(t *testing.T) {
	src := []byte(`---
date: 2024-03-14 21:30
title: Thursday
---

Dinner with [[Ana Silva|Ana]] and [[Joe]].
`)
	pf, err := ParseJournalFile(src, "notes/thursday.md", mtime, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, DateFromFrontmatter, pf.DateSource)
	assert.Equal(t, time.Date(2024, time.March, 14, 21, 30, 0, 0, time.UTC), pf.CreatedAt)
	assert.Equal(t, "# Thursday\n\nDinner with Ana and Joe.", pf.Content)
}

func TestParseJournalFile_DailyNoteName(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	pf, err := ParseJournalFile([]byte("Slept badly."), "daily/2024-02-29.md", mtime, loc)
	require.NoError(t, err)

	assert.Equal(t, DateFromFilename, pf.DateSource)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, loc), pf.CreatedAt)
	assert.Equal(t, "Slept badly.", pf.Content)
}

func TestParseJournalFile_FallsBackToModTime(t *testing.T) {
	pf, err := ParseJournalFile([]byte("# Ideas\n\nBuild a shed."), "ideas.md", mtime, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, DateFromModTime, pf.DateSource)
	assert.Equal(t, mtime, pf.CreatedAt)
	assert.Equal(t, "Ideas", pf.Title)
	assert.Equal(t, "# Ideas\n\nBuild a shed.", pf.Content, "no duplicate heading")
}

func TestParseJournalFile_InvalidYAML(t *testing.T) {
	_, err := ParseJournalFile([]byte("---\ndate: [unclosed\n---\nbody"), "bad.md", mtime, time.UTC)
	assert.Error(t, err)
}

func TestParseJournalFile_UnclosedFrontmatterIsBody(t *testing.T) {
	pf, err := ParseJournalFile([]byte("---\njust dashes"), "x.md", mtime, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "---\njust dashes", pf.Content)
}

func TestStripWikiLinks(t *testing.T) {
	assert.Equal(t, "see Alpha and beta", StripWikiLinks("see [[Alpha]] and [[Beta Note|beta]]"))
	assert.Equal(t, "no links", StripWikiLinks("no links"))
}
