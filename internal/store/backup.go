package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultMaxBackups = 20

	// Backup names sort in creation order.
	backupStamp = "20060102T150405.000000000"
)

// snapshotTables must all be present before a file may replace the live
// database.
var snapshotTables = []string{"profiles", "friendships", "friend_requests", "posts", "relay_transactions"}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Name      string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`

	path string
}

// Backup writes a consistent copy of the live database into the backup
// directory and prunes the oldest copies beyond keep.
func (s *Store) Backup(ctx context.Context, keep int) (BackupInfo, error) {
	s.mu.RLock()
	info, err := s.backupLocked(ctx)
	s.mu.RUnlock()
	if err != nil {
		return BackupInfo{}, err
	}
	s.pruneBackups(keep)
	return info, nil
}

// ExportSnapshot returns a consistent copy of the live database.
func (s *Store) ExportSnapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp(s.backupDir, ".export-")
	if err != nil {
		return nil, fmt.Errorf("stage export: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, filepath.Base(s.file))
	s.mu.RLock()
	err = s.vacuumInto(ctx, target)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// ImportSnapshot replaces the live database with data, which must be a
// social graph database. The replaced contents are kept as a backup, which
// is returned.
func (s *Store) ImportSnapshot(ctx context.Context, data []byte, keep int) (BackupInfo, error) {
	if len(data) == 0 {
		return BackupInfo{}, fmt.Errorf("empty snapshot: %w", ErrInvalidSnapshot)
	}
	return s.stage(ctx, keep, func(staged string) error {
		return os.WriteFile(staged, data, 0o600)
	})
}

// RestoreBackup replaces the live database with the named backup. The
// replaced contents are kept as a new backup, which is returned.
func (s *Store) RestoreBackup(ctx context.Context, name string, keep int) (BackupInfo, error) {
	source := filepath.Join(s.backupDir, filepath.Base(name))
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return BackupInfo{}, fmt.Errorf("backup %s: %w", filepath.Base(name), ErrNotFound)
		}
		return BackupInfo{}, err
	}
	return s.stage(ctx, keep, func(staged string) error {
		return copyFile(source, staged)
	})
}

// ListBackups returns the backups of this database, newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	backups, err := s.listBackups()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(backups, func(i, j int) bool { return backups[i].Name > backups[j].Name })
	return backups, nil
}

// stage fills a file next to the backups, checks it, and swaps it in.
func (s *Store) stage(ctx context.Context, keep int, fill func(staged string) error) (BackupInfo, error) {
	dir, err := os.MkdirTemp(s.backupDir, ".import-")
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stage snapshot: %w", err)
	}
	defer os.RemoveAll(dir)

	staged := filepath.Join(dir, filepath.Base(s.file))
	if err := fill(staged); err != nil {
		return BackupInfo{}, fmt.Errorf("stage snapshot: %w", err)
	}
	if err := checkSnapshot(ctx, staged); err != nil {
		return BackupInfo{}, err
	}

	previous, err := s.swap(ctx, staged)
	if err != nil {
		return BackupInfo{}, err
	}
	s.pruneBackups(keep)
	return previous, nil
}

// swap saves the live database as a backup and renames staged over it. If
// the staged file will not open, the saved copy is put back.
func (s *Store) swap(ctx context.Context, staged string) (BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.backupLocked(ctx)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("save live database: %w", err)
	}

	s.discardFiles()
	if err := os.Rename(staged, s.file); err != nil {
		if cerr := copyFile(previous.path, s.file); cerr != nil {
			return BackupInfo{}, fmt.Errorf("activate snapshot: %v; put back %s: %w", err, previous.Name, cerr)
		}
		return BackupInfo{}, errors.Join(fmt.Errorf("activate snapshot: %w", err), s.openDB())
	}

	err = s.openDB()
	if err == nil {
		err = s.ensureSchema()
	}
	if err != nil {
		s.discardFiles()
		if cerr := copyFile(previous.path, s.file); cerr != nil {
			return BackupInfo{}, fmt.Errorf("open snapshot: %v; put back %s: %w", err, previous.Name, cerr)
		}
		return BackupInfo{}, errors.Join(fmt.Errorf("open snapshot: %w", err), s.openDB())
	}
	return previous, nil
}

// backupLocked requires s.mu to be held in either mode.
func (s *Store) backupLocked(ctx context.Context) (BackupInfo, error) {
	if s.db == nil {
		return BackupInfo{}, errors.New("database closed")
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}

	path := s.nextBackupPath()
	if err := s.vacuumInto(ctx, path); err != nil {
		return BackupInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return BackupInfo{}, err
	}
	info, _ := s.parseBackup(filepath.Base(path), fi)
	return info, nil
}

func (s *Store) vacuumInto(ctx context.Context, target string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return fmt.Errorf("copy database to %s: %w", filepath.Base(target), err)
	}
	return nil
}

// checkSnapshot opens path on its own connection and verifies it is an
// intact database carrying the social graph tables.
func checkSnapshot(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", "file:"+filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidSnapshot)
	}
	defer db.Close()

	var verdict string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&verdict); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidSnapshot)
	}
	if verdict != "ok" {
		return fmt.Errorf("integrity check: %s: %w", verdict, ErrInvalidSnapshot)
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidSnapshot)
	}
	defer rows.Close()
	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidSnapshot)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidSnapshot)
	}
	for _, table := range snapshotTables {
		if !present[table] {
			return fmt.Errorf("missing table %s: %w", table, ErrInvalidSnapshot)
		}
	}
	return nil
}

func (s *Store) backupStem() (prefix, ext string) {
	base := filepath.Base(s.file)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-", ext
}

func (s *Store) nextBackupPath() string {
	prefix, ext := s.backupStem()
	at := time.Now().UTC()
	for {
		path := filepath.Join(s.backupDir, prefix+at.Format(backupStamp)+ext)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		at = at.Add(time.Nanosecond)
	}
}

// parseBackup reports whether name is one of this database's backups.
func (s *Store) parseBackup(name string, fi os.FileInfo) (BackupInfo, bool) {
	prefix, ext := s.backupStem()
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
		return BackupInfo{}, false
	}
	at, err := time.Parse(backupStamp, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
	if err != nil {
		return BackupInfo{}, false
	}
	return BackupInfo{
		Name:      name,
		Timestamp: at.UTC(),
		Size:      fi.Size(),
		path:      filepath.Join(s.backupDir, name),
	}, true
}

// listBackups returns the backups of this database, oldest first.
func (s *Store) listBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if info, ok := s.parseBackup(entry.Name(), fi); ok {
			backups = append(backups, info)
		}
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name < backups[j].Name })
	return backups, nil
}

func (s *Store) pruneBackups(keep int) {
	if keep <= 0 {
		keep = defaultMaxBackups
	}
	backups, err := s.listBackups()
	if err != nil {
		return
	}
	for len(backups) > keep {
		_ = os.Remove(backups[0].path)
		backups = backups[1:]
	}
}

// discardFiles closes the connection and removes the database with its
// WAL sidecars.
func (s *Store) discardFiles() {
	_ = s.closeDB()
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(s.file + suffix)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
