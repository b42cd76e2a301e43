package cuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/lipsync/internal/types"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", types.ErrCacheUnreachable, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", types.ErrCacheUnreachable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", types.ErrCacheUnreachable, err)
	}
	// one connection serializes writers; SQLite would otherwise return SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate database: %v", types.ErrCacheUnreachable, err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cue_cache (
		key TEXT PRIMARY KEY,
		cues TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`)
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) ([]types.MouthCue, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT cues FROM cue_cache WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	return decode([]byte(raw))
}

func (s *SQLite) Put(ctx context.Context, key string, cues []types.MouthCue) error {
	b, err := encode(cues)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO cue_cache (key, cues, created_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET cues = excluded.cues`,
		key, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
