package sqlite

import "github.com/scrypster/reverie/internal/storage"

// schemaV1 creates the journal and profile tables. Times are stored as Unix
// milliseconds (UTC) so range filters and ordering are plain integer
// comparisons. Embeddings are little-endian float32 BLOBs.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id              TEXT PRIMARY KEY,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	embedding       BLOB,
	dimension       INTEGER NOT NULL DEFAULT 0,
	embedding_model TEXT NOT NULL DEFAULT '',
	updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_created_at ON journal_entries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_journal_entries_missing_embedding ON journal_entries(created_at) WHERE embedding IS NULL;

CREATE TABLE IF NOT EXISTS user_profile (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	background_info  TEXT NOT NULL DEFAULT '',
	goals            TEXT NOT NULL DEFAULT '',
	current_projects TEXT NOT NULL DEFAULT '',
	other            TEXT NOT NULL DEFAULT '',
	name_mappings    TEXT NOT NULL DEFAULT '[]',
	updated_at       INTEGER NOT NULL
);
`

// migrations is the ordered schema history. Append new versions; never
// edit an applied one.
var migrations = []storage.Migration{
	{Version: 1, Name: "journal_and_profile", Up: schemaV1},
}
