package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// listSnapshots returns the snapshots in dir, newest first. Files that do
// not follow the snapshot naming scheme are ignored.
func listSnapshots(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taken, ok := parseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Path:  filepath.Join(dir, entry.Name()),
			Taken: taken,
			Size:  info.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Taken.After(snapshots[j].Taken)
	})
	return snapshots, nil
}

func snapshotName(t time.Time) string {
	return FilePrefix + t.UTC().Format(timestampLayout) + FileSuffix
}

func parseSnapshotName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	t, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// applyRetention removes snapshots the policy does not keep and returns the
// removed paths. Within each tier the newest snapshots survive.
func applyRetention(dir string, policy RetentionPolicy, now time.Time) ([]string, error) {
	snapshots, err := listSnapshots(dir)
	if err != nil {
		return nil, err
	}

	var toDelete []string
	var hourly, daily, weekly, monthly []Snapshot
	for _, s := range snapshots {
		age := now.Sub(s.Taken)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, s)
		case age < 7*24*time.Hour:
			daily = append(daily, s)
		case age < 30*24*time.Hour:
			weekly = append(weekly, s)
		case age < 365*24*time.Hour:
			monthly = append(monthly, s)
		default:
			toDelete = append(toDelete, s.Path)
		}
	}

	for _, tier := range []struct {
		snapshots []Snapshot
		keep      int
	}{
		{hourly, policy.Hourly},
		{daily, policy.Daily},
		{weekly, policy.Weekly},
		{monthly, policy.Monthly},
	} {
		keep := max(tier.keep, 0)
		if len(tier.snapshots) > keep {
			for _, s := range tier.snapshots[keep:] {
				toDelete = append(toDelete, s.Path)
			}
		}
	}

	var (
		removed []string
		errs    []error
	)
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("failed to delete some snapshots: %w", errors.Join(errs...))
	}
	return removed, nil
}
