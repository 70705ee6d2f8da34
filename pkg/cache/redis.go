package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWriteTimeout bounds how long a cache write may block the calling
// path. Writes that exceed it are dropped.
const DefaultWriteTimeout = 250 * time.Millisecond

// RedisStore backs the cache with a redis-compatible key/value server.
// All failures degrade to misses; the store never propagates backend errors
// to callers.
type RedisStore struct {
	client       *redis.Client
	writeTimeout time.Duration
	counters     counters
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// URL is a redis connection string, e.g. redis://localhost:6379/0.
	URL string

	// WriteTimeout bounds Set calls. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// NewRedisStore connects to the configured redis backend. Connection errors
// are not surfaced here; the first Ping decides readiness.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache backend url: %w", err)
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	return &RedisStore{
		client:       redis.NewClient(redisOpts),
		writeTimeout: writeTimeout,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	category := string(CategoryOf(key))

	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.counters.fault(category)
			slog.Debug("Cache get failed, treating as miss", "key", key, "error", err)
		}
		s.counters.miss(category)
		return nil, false
	}

	s.counters.hit(category)
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	category := string(CategoryOf(key))

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if err := s.client.Set(writeCtx, key, value, ttl).Err(); err != nil {
		s.counters.fault(category)
		slog.Debug("Cache write dropped", "key", key, "error", err)
		return
	}
	s.counters.set(category)
}

func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		slog.Debug("Cache delete failed", "key", key, "error", err)
	}
}

func (s *RedisStore) Clear(ctx context.Context, category Category) error {
	if category == "" {
		return s.client.FlushDB(ctx).Err()
	}

	// SCAN-based clear keeps redis responsive on large keyspaces.
	pattern := string(category) + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return fmt.Errorf("cache clear scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache clear delete failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) Stats(ctx context.Context) Stats {
	stats := s.counters.snapshot()

	if size, err := s.client.DBSize(ctx).Result(); err == nil {
		stats.Entries = size
	}
	return stats
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache backend unreachable: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)

// NewStoreFromURL returns a redis store when url is set, otherwise the
// in-memory store. A redis url that fails to parse falls back to memory with
// a warning rather than failing boot.
func NewStoreFromURL(url string, writeTimeout time.Duration) Store {
	if strings.TrimSpace(url) == "" {
		return NewMemoryStore()
	}

	store, err := NewRedisStore(RedisOptions{URL: url, WriteTimeout: writeTimeout})
	if err != nil {
		slog.Warn("Invalid cache backend url, using in-memory cache", "error", err)
		return NewMemoryStore()
	}
	return store
}
