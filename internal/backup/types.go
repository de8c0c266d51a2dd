// Package backup snapshots the SQLite journal database and prunes old
// snapshots with a tiered retention policy.
package backup

import (
	"time"
)

// FilePrefix and FileSuffix bracket the timestamp in snapshot file names.
const (
	FilePrefix = "reverie-"
	FileSuffix = ".db"

	// timestampLayout sorts lexically in time order.
	timestampLayout = "20060102-150405.000000"
)

// RetentionPolicy defines how many snapshots to keep at each tier.
// Snapshots are categorized by age:
// - Hourly: less than 24 hours old
// - Daily: 1-7 days old
// - Weekly: 7-30 days old
// - Monthly: 30-365 days old
//
// Anything older than a year is always removed.
type RetentionPolicy struct {
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
}

// DefaultRetention keeps a day of hourly snapshots and a year of monthlies.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}
}

// Snapshot describes one snapshot file.
type Snapshot struct {
	// Path is the full path to the snapshot file
	Path string `json:"path" yaml:"path"`

	// Taken is parsed from the file name, not the file's mtime, so copies
	// between machines keep their place in the retention tiers.
	Taken time.Time `json:"taken" yaml:"taken"`

	// Size is the file size in bytes
	Size int64 `json:"size" yaml:"size"`

	// Verified is set when the snapshot passed an integrity check
	Verified bool `json:"verified" yaml:"verified"`

	// Duration is how long taking the snapshot took (zero for listed files)
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}
