package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps entries in a local SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Stats contains cache statistics
type Stats struct {
	Entries     int
	LiveEntries int
	OldestEntry time.Time
}

// NewSQLiteStore initializes the cache database at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreFromDB uses an already open database
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var data []byte
	now := s.now().UnixMilli()

	err := s.db.QueryRowContext(ctx,
		"SELECT entry_data FROM feed_cache WHERE key = ? AND purge_at > ?",
		key, now,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache read of %s failed: %w", key, err)
	}

	entry, err := DeserializeEntry(data)
	if err != nil {
		slog.Warn("dropping unreadable cache entry", "key", key, "error", err)
		return Entry{}, false, nil
	}

	_, _ = s.db.ExecContext(ctx,
		"UPDATE feed_cache SET accessed_at = ? WHERE key = ?",
		now, key,
	)

	return entry, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, entry Entry, retention time.Duration) error {
	data, err := SerializeEntry(entry)
	if err != nil {
		return err
	}
	now := s.now()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO feed_cache
		(key, entry_data, expires_at, purge_at, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, data, entry.ExpiresAt.UnixMilli(), now.Add(retention).UnixMilli(), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("cache write of %s failed: %w", key, err)
	}
	return nil
}

// Purge removes entries past their retention
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM feed_cache WHERE purge_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all cache entries and returns how many were deleted
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM feed_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear feed cache: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Stats returns cache statistics
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	now := s.now().UnixMilli()

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_cache WHERE purge_at > ?", now).Scan(&stats.Entries)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_cache WHERE expires_at > ?", now).Scan(&stats.LiveEntries)
	if err != nil {
		return stats, err
	}

	var oldest sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT MIN(created_at) FROM feed_cache").Scan(&oldest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, err
	}
	if oldest.Valid && oldest.Int64 > 0 {
		stats.OldestEntry = time.UnixMilli(oldest.Int64)
	}

	return stats, nil
}

// Close closes the cache database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DefaultCachePath returns the default cache database path
func DefaultCachePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "cache.db"
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "subfeed", "cache.db")
}
