package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_backup_snapshots_total",
			Help: "Journal snapshots attempted by result.",
		},
		[]string{"result"},
	)

	lastSnapshot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reverie_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last verified snapshot.",
		},
	)
)

// Config describes where snapshots go and how many are kept.
type Config struct {
	// Dir is the directory snapshots are written to.
	Dir string

	// Interval is the pause between scheduled snapshots in Run.
	Interval time.Duration

	Retention RetentionPolicy
}

// Service takes, lists and restores snapshots of one SQLite database.
type Service struct {
	dbPath    string
	dir       string
	interval  time.Duration
	retention RetentionPolicy
	now       func() time.Time
	log       zerolog.Logger

	mu   sync.Mutex // serialises snapshot and restore
	last time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for snapshot names and retention.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService validates cfg. The backup directory is created on first use.
func NewService(dbPath string, cfg Config, log zerolog.Logger, opts ...Option) (*Service, error) {
	if dbPath == "" {
		return nil, errors.New("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup: backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	s := &Service{
		dbPath:    dbPath,
		dir:       cfg.Dir,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       time.Now,
		log:       log.With().Str("component", "backup").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the snapshot directory.
func (s *Service) Dir() string { return s.dir }

// Snapshot copies the database into the backup directory, verifies the
// copy, and then applies the retention policy. A retention failure is logged
// and does not fail the snapshot.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshotLocked(ctx)
	if err != nil {
		snapshotsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	snapshotsTotal.WithLabelValues("ok").Inc()
	lastSnapshot.Set(float64(snap.Taken.Unix()))
	s.last = snap.Taken

	removed, err := applyRetention(s.dir, s.retention, s.now())
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to apply retention policy")
	}
	s.log.Info().
		Str("path", snap.Path).
		Int64("bytes", snap.Size).
		Dur("duration", snap.Duration).
		Int("pruned", len(removed)).
		Msg("snapshot taken")
	return snap, nil
}

func (s *Service) snapshotLocked(ctx context.Context) (*Snapshot, error) {
	started := time.Now()

	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("backup: database not found: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("backup: create backup directory: %w", err)
	}

	path := filepath.Join(s.dir, snapshotName(s.now()))
	if err := snapshotSQLite(ctx, s.dbPath, path); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	if err := verifySnapshot(ctx, path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("backup: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: stat snapshot: %w", err)
	}

	taken, _ := parseSnapshotName(filepath.Base(path))
	return &Snapshot{
		Path:     path,
		Taken:    taken,
		Size:     info.Size(),
		Verified: true,
		Duration: time.Since(started),
	}, nil
}

// List returns the snapshots on disk, newest first. A missing backup
// directory means there are none.
func (s *Service) List() ([]Snapshot, error) {
	snapshots, err := listSnapshots(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return snapshots, nil
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first and put back if the restore fails. Nothing
// may have the database open.
func (s *Service) Restore(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup: snapshot not found: %w", err)
	}

	var safety string
	if _, err := os.Stat(s.dbPath); err == nil {
		safety = s.dbPath + ".pre-restore"
		_ = os.Remove(safety)
		if err := snapshotSQLite(ctx, s.dbPath, safety); err != nil {
			return fmt.Errorf("backup: failed to save current database: %w", err)
		}
		defer func() { _ = os.Remove(safety) }()
	}

	if err := restoreSQLite(ctx, path, s.dbPath); err != nil {
		if safety == "" {
			return fmt.Errorf("backup: %w", err)
		}
		if rbErr := restoreSQLite(ctx, safety, s.dbPath); rbErr != nil {
			return fmt.Errorf("backup: restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
		}
		return fmt.Errorf("backup: restore failed, previous database kept: %w", err)
	}

	s.log.Info().Str("snapshot", path).Msg("database restored")
	return nil
}

// Run takes a snapshot every interval until ctx is cancelled. Failures are
// logged and the schedule continues.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Str("dir", s.dir).Msg("scheduled snapshots enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled snapshot failed")
			}
		}
	}
}

// LastSnapshot is when this Service last took a verified snapshot.
func (s *Service) LastSnapshot() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
