// Package cache keeps materialized query results in Redis so repeated
// questions skip the warehouse. Cache trouble is never fatal: lookups degrade
// to a miss and writes are dropped.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/starquery/starquery/internal/query"
)

// Rows hold interface values from the engine's closed coercion set; gob needs
// the one non-basic member registered to round-trip them without widening
// integers or stringifying timestamps.
func init() {
	gob.Register(time.Time{})
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type ResultCache struct {
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, cfg.TTL, logger), nil
}

func NewWithClient(client redisClient, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{client: client, ttl: ttl, logger: logger}
}

func (c *ResultCache) Get(ctx context.Context, key string) (query.Result, bool) {
	payload, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "error", err)
		}
		return query.Result{}, false
	}

	var result query.Result
	if err := gob.NewDecoder(bytes.NewReader([]byte(payload))).Decode(&result); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss", "key", key, "error", err)
		return query.Result{}, false
	}
	return result, true
}

func (c *ResultCache) Put(ctx context.Context, key string, result query.Result) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(result); err != nil {
		c.logger.Warn("cache put encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, payload.Bytes(), c.ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", "error", err)
	}
}
