package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Conn opens and pings a redis connection.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	return client, nil
}

const layerKeyPrefix = "seeker:layer:"

// LayerCache is a short-TTL cache of raw search-layer responses keyed by
// (query, freshness, count). A hit skips the provider call entirely, which
// also means the credential pool is never touched for that layer.
// A nil *LayerCache is valid and always misses.
type LayerCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewLayerCache(client *redis.Client, ttl time.Duration) *LayerCache {
	return &LayerCache{
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}
}

// Key derives the cache key for one search layer.
func Key(query, freshness string, count int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", query, freshness, count)))
	return layerKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached payload for key, or false on miss or error.
func (c *LayerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("get %s failed: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

// Set stores the payload under key with the configured TTL. Failures are
// logged and ignored; the cache is strictly best-effort.
func (c *LayerCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Printf("set %s failed: %v", key, err)
	}
}
