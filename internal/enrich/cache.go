package enrich

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

// Cache remembers enrichment results per IP so the same destination seen
// across several dialogs doesn't re-query whois and geolocation.
type Cache interface {
	Get(ctx context.Context, ip string) (alert.Enrichment, bool)
	Set(ctx context.Context, ip string, e alert.Enrichment)
}

const (
	lruCacheSize  = 256
	redisCacheTTL = time.Hour
	redisKeyspace = "netwarden:enrich:"
)

// LRUCache is the in-process fallback when no redis address is configured.
type LRUCache struct {
	cache *lru.Cache[string, alert.Enrichment]
}

// NewLRUCache creates the in-process cache.
func NewLRUCache() (*LRUCache, error) {
	c, err := lru.New[string, alert.Enrichment](lruCacheSize)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c}, nil
}

func (c *LRUCache) Get(_ context.Context, ip string) (alert.Enrichment, bool) {
	return c.cache.Get(ip)
}

func (c *LRUCache) Set(_ context.Context, ip string, e alert.Enrichment) {
	c.cache.Add(ip, e)
}

// RedisCache shares enrichment results across agent restarts.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{rdb: rdb, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, ip string) (alert.Enrichment, bool) {
	raw, err := c.rdb.Get(ctx, redisKeyspace+ip).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed", zap.Error(err))
		}
		return alert.Enrichment{}, false
	}
	var e alert.Enrichment
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("redis entry malformed, dropping", zap.String("ip", ip), zap.Error(err))
		return alert.Enrichment{}, false
	}
	return e, true
}

func (c *RedisCache) Set(ctx context.Context, ip string, e alert.Enrichment) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyspace+ip, raw, redisCacheTTL).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
