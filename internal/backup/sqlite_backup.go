package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// snapshotSQLite writes a consistent copy of the database at sourcePath to
// destPath. VACUUM INTO reads through the WAL, so the live store can keep
// writing while the copy is taken.
func snapshotSQLite(ctx context.Context, sourcePath, destPath string) error {
	sourceDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", sourcePath))
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = sourceDB.Close() }()

	if err := sourceDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping source database: %w", err)
	}

	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := sourceDB.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

// verifySnapshot runs SQLite's integrity_check on a snapshot and confirms it
// holds a journal.
func verifySnapshot(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var tables int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'journal_entries'").Scan(&tables)
	if err != nil {
		return fmt.Errorf("failed to inspect snapshot: %w", err)
	}
	if tables == 0 {
		return fmt.Errorf("snapshot has no journal_entries table")
	}
	return nil
}

// restoreSQLite replaces targetPath with a verified copy of snapshotPath.
// Nothing may have the target database open.
func restoreSQLite(ctx context.Context, snapshotPath, targetPath string) error {
	if err := verifySnapshot(ctx, snapshotPath); err != nil {
		return fmt.Errorf("snapshot verification failed: %w", err)
	}

	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = src.Close() }()

	// Write beside the target and rename so a failed copy leaves the
	// current database untouched.
	tmp := targetPath + ".restore"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync target file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// Stale WAL files belong to the database being replaced.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(targetPath + suffix); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to remove %s: %w", suffix, err)
		}
	}

	if err := os.Rename(tmp, targetPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return verifySnapshot(ctx, targetPath)
}
