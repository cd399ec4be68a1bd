package tools

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache stores search results in redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedProvider serves repeated queries from a Cache. Cache failures are
// logged and the backend is called as if the entry were missing.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, prefix: "deep-research:search:", logger: logger}
}

func (p *CachedProvider) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	key := p.key(query, limit)

	raw, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached []Snippet
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && len(cached) > 0 {
			p.logger.Debug("Search cache hit", "query", query)
			return cached, nil
		}
	case !errors.Is(err, ErrCacheMiss):
		p.logger.Warn("Search cache read failed", "error", err)
	}

	results, err := p.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := p.cache.Set(ctx, key, data, p.ttl); err != nil {
			p.logger.Warn("Search cache write failed", "error", err)
		}
	}
	return results, nil
}

func (p *CachedProvider) key(query string, limit int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))))
	return p.prefix + hex.EncodeToString(sum[:])
}
