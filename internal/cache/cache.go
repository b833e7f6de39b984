package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetJob(ctx context.Context, job *models.Job, ttl time.Duration) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Publish(ctx context.Context, channel string, payload []byte) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SetJob caches a job snapshot for status polling. The callback token is not
// serialized, so it never leaves the database.
func (c *RedisCache) SetJob(ctx context.Context, job *models.Job, ttl time.Duration) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}
	return c.client.Set(ctx, JobStatusKey(job.ID), b, ttl).Err()
}

// GetJob returns a cached job snapshot. A miss is (nil, false, nil).
func (c *RedisCache) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, bool, error) {
	val, err := c.client.Get(ctx, JobStatusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var job models.Job
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, false, fmt.Errorf("decode job snapshot: %w", err)
	}
	return &job, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Publish sends payload to every subscriber of channel.
func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.client.Publish(ctx, channel, payload).Err()
}

// AcquireLock takes key for ttl if nobody holds it. The lock is never
// released explicitly; it lapses when ttl expires.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

// Compile-time check that RedisCache implements Cache.
var _ Cache = (*RedisCache)(nil)
