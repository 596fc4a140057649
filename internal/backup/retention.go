package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// listSnapshots reads the snapshot directory, newest first. Only regular
// files with the snapshot prefix and a .db suffix count.
func listSnapshots(dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("backup: read snapshot directory: %w", err)
	}

	var snapshots []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "mindloom-") || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, SnapshotInfo{
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// prune deletes snapshots beyond the per-tier keep counts. Each snapshot
// lands in exactly one tier based on its age; within a tier the newest
// survive. Snapshots over a year old always go.
func prune(dir string, keep Retention) error {
	snapshots, err := listSnapshots(dir)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}

	now := time.Now()
	tiers := map[string][]SnapshotInfo{}
	var doomed []string

	for _, sn := range snapshots {
		age := now.Sub(sn.Timestamp)
		switch {
		case age < 24*time.Hour:
			tiers["hourly"] = append(tiers["hourly"], sn)
		case age < 7*24*time.Hour:
			tiers["daily"] = append(tiers["daily"], sn)
		case age < 30*24*time.Hour:
			tiers["weekly"] = append(tiers["weekly"], sn)
		case age < 365*24*time.Hour:
			tiers["monthly"] = append(tiers["monthly"], sn)
		default:
			doomed = append(doomed, sn.Path)
		}
	}

	limits := map[string]int{
		"hourly":  keep.Hourly,
		"daily":   keep.Daily,
		"weekly":  keep.Weekly,
		"monthly": keep.Monthly,
	}
	for tier, limit := range limits {
		if members := tiers[tier]; len(members) > limit {
			for _, sn := range members[limit:] {
				doomed = append(doomed, sn.Path)
			}
		}
	}

	var lastErr error
	for _, path := range doomed {
		if err := os.Remove(path); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("backup: prune snapshots: %w", lastErr)
	}
	return nil
}
