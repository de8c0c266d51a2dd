package postgres

import (
	"fmt"

	"github.com/scrypster/reverie/internal/storage"
)

// schema returns the DDL for a store whose embeddings have the given width.
// pgvector columns are fixed-width, so changing embedding models to one with
// a different dimension requires a fresh table.
func schema(dimension int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS journal_entries (
	id              TEXT PRIMARY KEY,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	embedding       vector(%d),
	embedding_model TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_created_at ON journal_entries (created_at DESC);

CREATE TABLE IF NOT EXISTS user_profile (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	background_info  TEXT NOT NULL DEFAULT '',
	goals            TEXT NOT NULL DEFAULT '',
	current_projects TEXT NOT NULL DEFAULT '',
	other            TEXT NOT NULL DEFAULT '',
	name_mappings    JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, dimension)
}

// migrations is the ordered schema history for a given embedding width.
func migrations(dimension int) []storage.Migration {
	return []storage.Migration{
		{Version: 1, Name: "journal_and_profile", Up: schema(dimension)},
	}
}
