package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio_ingest/pkg/core/config"
	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/models"
)

const cacheKeyPrefix = "ingest:result:"

// NewRedisClient creates a Redis client for cfg.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// ResultCache keeps results keyed by the SHA-256 of the uploaded bytes.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache wraps client. A zero ttl keeps entries until evicted.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// Ping tests the Redis connection
func (c *ResultCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get returns the cached result for hash. A miss returns (nil, false, nil).
func (c *ResultCache) Get(ctx context.Context, hash string) (*models.ProcessedData, bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+hash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, apperrors.NewStorageError("cache get", err)
	}

	var data models.ProcessedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, apperrors.NewStorageError("cache get", fmt.Errorf("failed to unmarshal cached result: %w", err))
	}
	return &data, true, nil
}

// Set stores data under hash.
func (c *ResultCache) Set(ctx context.Context, hash string, data *models.ProcessedData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperrors.NewStorageError("cache set", fmt.Errorf("failed to marshal result: %w", err))
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+hash, raw, c.ttl).Err(); err != nil {
		return apperrors.NewStorageError("cache set", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
