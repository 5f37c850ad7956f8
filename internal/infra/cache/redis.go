package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CompletionCache memoizes raw completions keyed by code hash + mode, so
// re-auditing unchanged code skips the paid model call. Each run still
// produces its own report and history entry.
type CompletionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*CompletionCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CompletionCache{rdb: rdb, ttl: ttl}, nil
}

func key(codeHash, mode string) string {
	return "audit:completion:" + codeHash + ":" + mode
}

// Get returns the cached completion, or ok=false on miss/error. Cache
// errors never fail the session.
func (c *CompletionCache) Get(ctx context.Context, codeHash, mode string) (string, bool) {
	v, err := c.rdb.Get(ctx, key(codeHash, mode)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Set stores a completion with the configured TTL.
func (c *CompletionCache) Set(ctx context.Context, codeHash, mode, text string) error {
	err := c.rdb.Set(ctx, key(codeHash, mode), text, c.ttl).Err()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *CompletionCache) Close() error { return c.rdb.Close() }
