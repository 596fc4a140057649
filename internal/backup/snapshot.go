package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

// snapshotDB writes a consistent point-in-time copy of a sqlite database.
// VACUUM INTO is safe under WAL mode, which the index runs in.
func snapshotDB(srcPath, dstPath string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", srcPath))
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping source database: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", dstPath)); err != nil {
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}
	return nil
}

// verifySnapshot runs sqlite's integrity check against a snapshot file.
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}

// restoreDB copies a verified snapshot over the target path and verifies the
// result. The target database must be closed.
func restoreDB(snapshotPath, targetPath string) error {
	if err := verifySnapshot(snapshotPath); err != nil {
		return err
	}

	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync target: %w", err)
	}
	return verifySnapshot(targetPath)
}
