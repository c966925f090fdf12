package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix       = "canonical:url:"
	embeddingKeyPrefix = "embedding:"

	// URL index entries outlive any realistic reposting window; embeddings
	// are rewritten whenever content changes, so both carry a long TTL
	// instead of living forever.
	redisEntryTTL = 90 * 24 * time.Hour
)

// RedisIndex implements URLIndex and EmbeddingStore on a shared redis client.
type RedisIndex struct {
	rdb *redis.Client
}

// NewRedisIndex wraps an existing client.
func NewRedisIndex(rdb *redis.Client) *RedisIndex {
	return &RedisIndex{rdb: rdb}
}

// LookupURL returns the canonical id recorded for url, or ErrNotFound.
func (r *RedisIndex) LookupURL(ctx context.Context, url string) (string, error) {
	id, err := r.rdb.Get(ctx, urlKeyPrefix+url).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis lookup url: %w", err)
	}
	return id, nil
}

// AddURL records url → canonicalID.
func (r *RedisIndex) AddURL(ctx context.Context, url, canonicalID string) error {
	if err := r.rdb.Set(ctx, urlKeyPrefix+url, canonicalID, redisEntryTTL).Err(); err != nil {
		return fmt.Errorf("redis add url: %w", err)
	}
	return nil
}

// PutEmbedding stores the vector as JSON under its content hash.
func (r *RedisIndex) PutEmbedding(ctx context.Context, contentHash string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	if err := r.rdb.Set(ctx, embeddingKeyPrefix+contentHash, data, redisEntryTTL).Err(); err != nil {
		return fmt.Errorf("redis put embedding: %w", err)
	}
	return nil
}
