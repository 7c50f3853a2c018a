package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Rdb *redis.Client

func InitRedis(redisAddress string, redisUsername string, redisPassword string) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr:         redisAddress,
		Username:     redisUsername,
		Password:     redisPassword,
		DB:           0,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return Rdb.Ping(ctx).Err()
}

// ETagCache remembers the last playlist fingerprint delivered to each device.
type ETagCache interface {
	Get(ctx context.Context, deviceID string) (string, bool, error)
	Set(ctx context.Context, deviceID, etag string) error
	Invalidate(ctx context.Context, deviceIDs ...string) error
}

func etagKey(deviceID string) string {
	return fmt.Sprintf("device:%s:playlists:etag", deviceID)
}

type RedisETagCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewETagCache(client *redis.Client, ttl time.Duration) *RedisETagCache {
	return &RedisETagCache{client: client, ttl: ttl}
}

func (c *RedisETagCache) Get(ctx context.Context, deviceID string) (string, bool, error) {
	v, err := c.client.Get(ctx, etagKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisETagCache) Set(ctx context.Context, deviceID, etag string) error {
	if err := c.client.Set(ctx, etagKey(deviceID), etag, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("device_id", deviceID).Msg("[redis] failed to store playlist ETag")
		return err
	}
	return nil
}

func (c *RedisETagCache) Invalidate(ctx context.Context, deviceIDs ...string) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	keys := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		keys[i] = etagKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Int("devices", len(deviceIDs)).Msg("[redis] failed to invalidate playlist ETags")
		return err
	}
	log.Debug().Int("devices", len(deviceIDs)).Msg("[redis] invalidated playlist ETags")
	return nil
}

// MemoryETagCache is used when Redis is not configured, and in tests.
type MemoryETagCache struct {
	mu   sync.Mutex
	tags map[string]string
}

func NewMemoryETagCache() *MemoryETagCache {
	return &MemoryETagCache{tags: map[string]string{}}
}

func (c *MemoryETagCache) Get(_ context.Context, deviceID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tags[deviceID]
	return v, ok, nil
}

func (c *MemoryETagCache) Set(_ context.Context, deviceID, etag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[deviceID] = etag
	return nil
}

func (c *MemoryETagCache) Invalidate(_ context.Context, deviceIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range deviceIDs {
		delete(c.tags, id)
	}
	return nil
}
