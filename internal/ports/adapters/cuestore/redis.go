package cuestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/forPelevin/lipsync/internal/types"
)

const redisKeyPrefix = "lipsync:cues:"

type Redis struct {
	rdb *redis.Client
}

// NewRedis connects using a redis:// or rediss:// URL and pings the server.
func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	// honour context deadlines on reads and writes, not only on dial
	opts.ContextTimeoutEnabled = true
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", types.ErrCacheUnreachable, err)
	}
	return &Redis{rdb: rdb}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]types.MouthCue, error) {
	b, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheUnreachable, err)
	}
	return decode(b)
}

// Put stores without expiry; entries live until removed by hand.
func (s *Redis) Put(ctx context.Context, key string, cues []types.MouthCue) error {
	b, err := encode(cues)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, b, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheWrite, err)
	}
	return nil
}

func (s *Redis) Close() error { return s.rdb.Close() }
