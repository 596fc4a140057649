package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestIndex creates a small sqlite database and returns its path.
func newTestIndex(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mindloom.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE memories (id TEXT PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		_, err = db.Exec(`INSERT INTO memories (id, content) VALUES (?, ?)`,
			fmt.Sprintf("mem:%d", i), "a note")
		require.NoError(t, err)
	}
	return path
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n))
	return n
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Dir: t.TempDir()})
	assert.Error(t, err, "index path is required")

	_, err = New(Options{DBPath: "x.db"})
	assert.Error(t, err, "snapshot directory is required")
}

func TestOptions_Normalize(t *testing.T) {
	var opts Options
	opts.Normalize()

	assert.Equal(t, time.Hour, opts.Interval)
	assert.Equal(t, Retention{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}, opts.Keep)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dbPath := newTestIndex(t, 3)
	svc, err := New(Options{DBPath: dbPath, Dir: t.TempDir(), Verify: true})
	require.NoError(t, err)

	result, err := svc.Snapshot()
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Positive(t, result.Size)

	assert.Equal(t, 3, countRows(t, result.Path))

	snapshots, err := svc.List()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, result.Path, snapshots[0].Path)
}

func TestSnapshot_MissingIndex(t *testing.T) {
	svc, err := New(Options{DBPath: filepath.Join(t.TempDir(), "absent.db"), Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = svc.Snapshot()
	assert.Error(t, err)
}

func TestRestore_RevertsChanges(t *testing.T) {
	dbPath := newTestIndex(t, 2)
	svc, err := New(Options{DBPath: dbPath, Dir: t.TempDir(), Verify: true})
	require.NoError(t, err)

	result, err := svc.Snapshot()
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM memories`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Equal(t, 0, countRows(t, dbPath))

	require.NoError(t, svc.Restore(result.Path))
	assert.Equal(t, 2, countRows(t, dbPath))
}

func TestRestore_MissingSnapshot(t *testing.T) {
	svc, err := New(Options{DBPath: newTestIndex(t, 1), Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Error(t, svc.Restore(filepath.Join(t.TempDir(), "absent.db")))
}

func TestVerifySnapshot_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	assert.Error(t, verifySnapshot(path))
}

// writeSnapshotFile drops a dummy snapshot with a backdated mtime.
func writeSnapshotFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("sqlite"), 0o644))
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, ts, ts))
	return path
}

func TestListSnapshots_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	old := writeSnapshotFile(t, dir, "mindloom-old.db", 2*time.Hour)
	recent := writeSnapshotFile(t, dir, "mindloom-new.db", time.Minute)
	writeSnapshotFile(t, dir, "notes.txt", 0)
	writeSnapshotFile(t, dir, "other-tool.db", 0)

	snapshots, err := listSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, recent, snapshots[0].Path)
	assert.Equal(t, old, snapshots[1].Path)
}

func TestPrune_KeepsNewestPerTier(t *testing.T) {
	dir := t.TempDir()
	kept := []string{
		writeSnapshotFile(t, dir, "mindloom-h1.db", time.Hour),
		writeSnapshotFile(t, dir, "mindloom-h2.db", 2*time.Hour),
		writeSnapshotFile(t, dir, "mindloom-d1.db", 2*24*time.Hour),
	}
	dropped := []string{
		writeSnapshotFile(t, dir, "mindloom-h3.db", 3*time.Hour),
		writeSnapshotFile(t, dir, "mindloom-d2.db", 3*24*time.Hour),
		writeSnapshotFile(t, dir, "mindloom-ancient.db", 400*24*time.Hour),
	}

	err := prune(dir, Retention{Hourly: 2, Daily: 1, Weekly: 4, Monthly: 12})
	require.NoError(t, err)

	for _, path := range kept {
		assert.FileExists(t, path)
	}
	for _, path := range dropped {
		assert.NoFileExists(t, path)
	}
}

func TestStatus_ReportsUsage(t *testing.T) {
	dbPath := newTestIndex(t, 1)
	svc, err := New(Options{DBPath: dbPath, Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = svc.Snapshot()
	require.NoError(t, err)

	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Snapshots)
	assert.Positive(t, status.DiskSpaceUsed)
	assert.False(t, status.LastSnapshot.IsZero())
}
