package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const embeddingKeyPrefix = "reverie:embedding:"

// CachedEmbedder memoises embeddings in Redis, keyed by model and text.
// Cache failures are logged and fall through to the wrapped embedder; the
// cache can never fail a request on its own.
type CachedEmbedder struct {
	next   EmbeddingGenerator
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewCachedEmbedder wraps next with a Redis cache.
func NewCachedEmbedder(next EmbeddingGenerator, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, client: client, ttl: ttl, log: log}
}

// Embed returns the cached vector for text, computing and storing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal(data, &vec); jerr == nil && len(vec) > 0 {
			embeddingCacheLookups.WithLabelValues("hit").Inc()
			return vec, nil
		}
		embeddingCacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		embeddingCacheLookups.WithLabelValues("miss").Inc()
	default:
		embeddingCacheLookups.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Msg("embedding cache read failed")
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	return vec, nil
}

// GetModel returns the wrapped embedder's model.
func (c *CachedEmbedder) GetModel() string {
	return c.next.GetModel()
}

// key namespaces by model so switching models never serves stale vectors.
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingKeyPrefix + c.next.GetModel() + ":" + hex.EncodeToString(sum[:])
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*CachedEmbedder)(nil)
