package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one forward schema step. Versions must be unique and
// positive; they are applied in ascending order.
type Migration struct {
	Version uint
	Name    string
	Up      string
}

// Placeholder formats the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

// QuestionMark is the SQLite placeholder style.
func QuestionMark(int) string { return "?" }

// Dollar is the PostgreSQL placeholder style.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// MigrationManager applies versioned schema migrations and records each
// applied version in a schema_migrations table.
type MigrationManager struct {
	db          *sql.DB
	placeholder Placeholder
	migrations  []Migration
}

// NewMigrationManager validates migrations and sorts them by version.
func NewMigrationManager(db *sql.DB, placeholder Placeholder, migrations []Migration) (*MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for i, m := range sorted {
		if m.Version == 0 {
			return nil, fmt.Errorf("migrations: %q has version 0", m.Name)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("migrations: duplicate version %d", m.Version)
		}
	}

	return &MigrationManager{db: db, placeholder: placeholder, migrations: sorted}, nil
}

// ensureSchemaTable creates the schema_migrations table if it doesn't exist.
func (mgr *MigrationManager) ensureSchemaTable(ctx context.Context) error {
	_, err := mgr.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Up applies every migration newer than the current version, each in its
// own transaction. It returns the number applied.
func (mgr *MigrationManager) Up(ctx context.Context) (int, error) {
	if err := mgr.ensureSchemaTable(ctx); err != nil {
		return 0, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}

	current, err := mgr.Version(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range mgr.migrations {
		if m.Version <= current {
			continue
		}
		if err := mgr.apply(ctx, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (mgr *MigrationManager) apply(ctx context.Context, m Migration) error {
	tx, err := mgr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations: begin version %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("migrations: failed to apply version %d (%s): %w", m.Version, m.Name, err)
	}

	insert := fmt.Sprintf("INSERT INTO schema_migrations (version, name) VALUES (%s, %s)",
		mgr.placeholder(1), mgr.placeholder(2))
	if _, err := tx.ExecContext(ctx, insert, m.Version, m.Name); err != nil {
		return fmt.Errorf("migrations: failed to record version %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// Version returns the highest applied migration version, or 0 when none
// has been applied.
func (mgr *MigrationManager) Version(ctx context.Context) (uint, error) {
	var version int64
	err := mgr.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	return uint(version), nil
}
