// Package backup keeps periodic snapshots of the sqlite memory index with
// tiered retention and optional integrity verification.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Retention says how many snapshots to keep per age tier. Snapshots are
// tiered by age: under a day, under a week, under a month, under a year.
// Anything older than a year is always pruned.
type Retention struct {
	Hourly  int // snapshots younger than 24h (default: 24)
	Daily   int // snapshots between 1 and 7 days (default: 7)
	Weekly  int // snapshots between 7 and 30 days (default: 4)
	Monthly int // snapshots between 30 and 365 days (default: 12)
}

// Options configures the snapshot service.
type Options struct {
	DBPath   string        // sqlite index file to snapshot
	Dir      string        // snapshot directory
	Interval time.Duration // time between snapshots (default: 1h)
	Verify   bool          // run an integrity check on every snapshot
	Keep     Retention
}

// Normalize fills zero values with defaults.
func (o *Options) Normalize() {
	if o.Interval <= 0 {
		o.Interval = time.Hour
	}
	if o.Keep.Hourly <= 0 {
		o.Keep.Hourly = 24
	}
	if o.Keep.Daily <= 0 {
		o.Keep.Daily = 7
	}
	if o.Keep.Weekly <= 0 {
		o.Keep.Weekly = 4
	}
	if o.Keep.Monthly <= 0 {
		o.Keep.Monthly = 12
	}
}

// SnapshotInfo describes one snapshot file on disk.
type SnapshotInfo struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// SnapshotResult reports one completed snapshot.
type SnapshotResult struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
	Verified bool          `json:"verified"`
}

// Status summarizes the service for health reporting.
type Status struct {
	LastSnapshot  time.Time `json:"last_snapshot"`
	NextSnapshot  time.Time `json:"next_snapshot"`
	Snapshots     int       `json:"snapshots"`
	Dir           string    `json:"dir"`
	DiskSpaceUsed int64     `json:"disk_space_used"`
}

// Service takes snapshots of the index on a fixed interval.
type Service struct {
	opts Options

	mu   sync.Mutex
	last time.Time
	next time.Time
}

// New creates the service and its snapshot directory.
func New(opts Options) (*Service, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("backup: index path is required")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("backup: snapshot directory is required")
	}
	opts.Normalize()

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create snapshot directory: %w", err)
	}
	return &Service{opts: opts}, nil
}

// Run takes a snapshot every interval until ctx is canceled. Failures are
// logged and the next tick retries.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.mu.Lock()
	s.next = time.Now().Add(s.opts.Interval)
	s.mu.Unlock()

	log.Printf("backup: running every %v into %s", s.opts.Interval, s.opts.Dir)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if result, err := s.Snapshot(); err != nil {
				log.Printf("backup: snapshot failed: %v", err)
			} else {
				log.Printf("backup: wrote %s (%d bytes in %v)", result.Path, result.Size, result.Duration)
			}
			s.mu.Lock()
			s.next = time.Now().Add(s.opts.Interval)
			s.mu.Unlock()
		}
	}
}

// Snapshot writes one snapshot now, verifies it when configured, and prunes
// old snapshots. Pruning failures do not fail the snapshot.
func (s *Service) Snapshot() (*SnapshotResult, error) {
	start := time.Now()

	if _, err := os.Stat(s.opts.DBPath); err != nil {
		return nil, fmt.Errorf("backup: index not found: %w", err)
	}

	// Microsecond precision keeps names unique under rapid manual snapshots.
	name := fmt.Sprintf("mindloom-%s.db", start.Format("20060102-150405.000000"))
	path := filepath.Join(s.opts.Dir, name)

	if err := snapshotDB(s.opts.DBPath, path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("backup: stat snapshot: %w", err)
	}

	result := &SnapshotResult{Path: path, Size: info.Size(), Duration: time.Since(start)}
	if s.opts.Verify {
		if err := verifySnapshot(path); err != nil {
			return nil, fmt.Errorf("backup: verification failed: %w", err)
		}
		result.Verified = true
	}

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()

	if err := prune(s.opts.Dir, s.opts.Keep); err != nil {
		log.Printf("backup: prune failed: %v", err)
	}
	return result, nil
}

// List returns all snapshots, newest first.
func (s *Service) List() ([]SnapshotInfo, error) {
	return listSnapshots(s.opts.Dir)
}

// Restore replaces the index with the named snapshot. The index must not be
// open while restoring. The current index is snapshotted first so a failed
// restore can roll back.
func (s *Service) Restore(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup: snapshot not found: %w", err)
	}

	rollback := s.opts.DBPath + ".pre-restore"
	if _, err := os.Stat(s.opts.DBPath); err == nil {
		if err := snapshotDB(s.opts.DBPath, rollback); err != nil {
			return fmt.Errorf("backup: pre-restore snapshot: %w", err)
		}
		defer os.Remove(rollback)
	}

	if err := restoreDB(path, s.opts.DBPath); err != nil {
		if _, statErr := os.Stat(rollback); statErr == nil {
			if rbErr := restoreDB(rollback, s.opts.DBPath); rbErr != nil {
				return fmt.Errorf("backup: restore and rollback both failed: %v (restore: %w)", rbErr, err)
			}
			return fmt.Errorf("backup: restore failed, rolled back: %w", err)
		}
		return err
	}

	log.Printf("backup: index restored from %s", path)
	return nil
}

// Status reports snapshot counts, timing, and disk usage.
func (s *Service) Status() (*Status, error) {
	s.mu.Lock()
	last, next := s.last, s.next
	s.mu.Unlock()

	snapshots, err := listSnapshots(s.opts.Dir)
	if err != nil {
		return nil, err
	}
	var used int64
	for _, sn := range snapshots {
		used += sn.Size
	}

	return &Status{
		LastSnapshot:  last,
		NextSnapshot:  next,
		Snapshots:     len(snapshots),
		Dir:           s.opts.Dir,
		DiskSpaceUsed: used,
	}, nil
}
