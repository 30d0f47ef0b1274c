package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photosort/internal/formats"
	"photosort/internal/logging"
	"photosort/internal/scanner"
)

const defaultTimeout = 5 * time.Second

// Store persists folder scan results between runs, so reopening a folder
// can show its file list before the rescan finishes.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the scan index at dbPath. The parent
// directory must exist and be writable.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close scan index after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to scan index: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close scan index after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize scan index schema: %w", err)
	}

	logging.Info("Scan index opened at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		folder TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		kind TEXT NOT NULL,
		scanned_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceFolder transactionally replaces the stored entries for folder
// with the given scan result.
func (s *Store) ReplaceFolder(ctx context.Context, folder string, entries []scanner.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace folder: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("clear folder rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, folder, name, size, mod_time, kind, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Path, folder, e.Name, e.Size,
			e.ModTime.Unix(), string(e.Kind), now); err != nil {
			return fmt.Errorf("insert %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace folder: %w", err)
	}
	logging.Debug("Scan index: stored %d entries for %s", len(entries), folder)
	return nil
}

// Folder returns the stored entries for folder, sorted by name.
func (s *Store) Folder(ctx context.Context, folder string) ([]scanner.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, name, size, mod_time, kind
		FROM files WHERE folder = ? ORDER BY name`, folder)
	if err != nil {
		return nil, fmt.Errorf("query folder: %w", err)
	}
	defer rows.Close()

	var entries []scanner.Entry
	for rows.Next() {
		var e scanner.Entry
		var modUnix int64
		var kind string
		if err := rows.Scan(&e.Path, &e.Name, &e.Size, &modUnix, &kind); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.ModTime = time.Unix(modUnix, 0)
		e.Kind = formats.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FileCount returns the total number of indexed files.
func (s *Store) FileCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count)
	return count, err
}

// SetMeta stores a key/value pair (e.g. the last opened folder).
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Meta returns the stored value for key, or "" when absent.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
