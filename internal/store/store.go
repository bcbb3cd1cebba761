// Package store persists the off-chain mirror of the social graph (profiles,
// friend edges, friend requests, posts) and the relay journal in SQLite.
// Uniqueness rules live in the schema: one profile per address, one pending
// request per unordered pair, one edge per ordered pair.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "socialgraph.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000

	// Fixed-width UTC timestamps keep lexical and chronological order equal.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("already exists")
	ErrAlreadyResolved = errors.New("friend request already resolved")
	ErrAlreadyFriends  = errors.New("already friends")
	ErrInvalidSnapshot = errors.New("not a social graph database")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		address TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		bio TEXT NOT NULL,
		avatar_uri TEXT NOT NULL,
		on_chain_account_key TEXT NOT NULL,
		has_credential_nft INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		address TEXT NOT NULL REFERENCES profiles(address),
		friend_address TEXT NOT NULL REFERENCES profiles(address),
		created_at TEXT NOT NULL,
		PRIMARY KEY (address, friend_address)
	)`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id TEXT PRIMARY KEY,
		from_address TEXT NOT NULL REFERENCES profiles(address),
		to_address TEXT NOT NULL REFERENCES profiles(address),
		pair_low TEXT NOT NULL,
		pair_high TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Pending', 'Accepted', 'Rejected')),
		on_chain_request_key TEXT,
		created_at TEXT NOT NULL,
		resolved_at TEXT,
		CHECK (from_address <> to_address)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_pending_pair
		ON friend_requests(pair_low, pair_high) WHERE status = 'Pending'`,
	`CREATE INDEX IF NOT EXISTS idx_friend_requests_to_status
		ON friend_requests(to_address, status)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL REFERENCES profiles(address),
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author, created_at)`,
	`CREATE TABLE IF NOT EXISTS relay_transactions (
		signature TEXT PRIMARY KEY,
		intent TEXT NOT NULL,
		fee_payer TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		submitted_at TEXT NOT NULL,
		resolved_at TEXT
	)`,
}

// Store is the SQLite-backed social graph mirror.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
}

// New opens (or creates) the database at filePath. A database that cannot be
// opened is replaced by the newest backup, or by an empty database when no
// backup exists.
func New(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := s.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// newWithDB wraps an already opened database. Used by tests.
func newWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// File returns the absolute database path.
func (s *Store) File() string {
	return s.file
}

// BackupDir returns the directory holding database backups.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errors.New("database closed")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) tryOpenOrRecover() error {
	err := s.openDB()
	if err == nil {
		return nil
	}
	return s.recoverFrom(err)
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		filepath.Clean(path), maxBusyTimeoutMs)
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn(s.file))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// Touch the schema page so a corrupt file fails here, not on first use.
	var tables int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&tables); err != nil {
		db.Close()
		return fmt.Errorf("read %s: %w", filepath.Base(s.file), err)
	}
	s.db = db
	return nil
}

// recoverFrom replaces an unreadable database with the newest backup that
// passes checkSnapshot, or with an empty database when none does.
func (s *Store) recoverFrom(cause error) error {
	backups, err := s.listBackups()
	if err != nil {
		return fmt.Errorf("%v; list backups: %w", cause, err)
	}

	s.discardFiles()
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		if checkSnapshot(context.Background(), b.path) != nil {
			continue
		}
		if copyFile(b.path, s.file) == nil && s.openDB() == nil {
			return nil
		}
		s.discardFiles()
	}

	if err := s.openDB(); err != nil {
		return fmt.Errorf("create database after %v: %w", cause, err)
	}
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

// orderedPair returns the two addresses in a stable order so (a, b) and
// (b, a) map to the same key.
func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
