package cuestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forPelevin/lipsync/internal/types"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres ping: %v", types.ErrCacheUnreachable, err)
	}
	_, err = pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS cue_cache (
		key TEXT PRIMARY KEY,
		cues TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: migrate: %v", types.ErrCacheUnreachable, err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]types.MouthCue, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT cues FROM cue_cache WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	return decode([]byte(raw))
}

func (s *Postgres) Put(ctx context.Context, key string, cues []types.MouthCue) error {
	b, err := encode(cues)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
	INSERT INTO cue_cache (key, cues) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET cues = EXCLUDED.cues`, key, string(b))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
