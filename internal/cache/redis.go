package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/linkpool/internal/observability"
)

const (
	redisPrefix        = "links:list:"
	redisGenerationKey = redisPrefix + "gen"
)

// setIfGeneration writes a page only while the generation key still holds
// the generation the page was read under.
//
// KEYS[1] generation key, KEYS[2] page key
// ARGV[1] expected generation, ARGV[2] page, ARGV[3] ttl in milliseconds
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Redis is a ListCache shared by every replica.
// Invalidate bumps a generation key; stale pages expire through their TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. The caller owns the client unless
// Close is called.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) generation(ctx context.Context) (uint64, error) {
	gen, err := r.client.Get(ctx, redisGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func pageKey(gen uint64, key string) string {
	return redisPrefix + strconv.FormatUint(gen, 10) + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, uint64, bool, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		observability.CacheOperations.WithLabelValues(BackendRedis, resultError).Inc()
		return nil, 0, false, err
	}

	b, err := r.client.Get(ctx, pageKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheOperations.WithLabelValues(BackendRedis, resultMiss).Inc()
		return nil, gen, false, nil
	}
	if err != nil {
		observability.CacheOperations.WithLabelValues(BackendRedis, resultError).Inc()
		return nil, 0, false, err
	}
	observability.CacheOperations.WithLabelValues(BackendRedis, resultHit).Inc()
	return b, gen, true, nil
}

func (r *Redis) Set(ctx context.Context, gen uint64, key string, value []byte) error {
	stored, err := setIfGeneration.Run(ctx, r.client,
		[]string{redisGenerationKey, pageKey(gen, key)},
		strconv.FormatUint(gen, 10), value, r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		observability.CacheOperations.WithLabelValues(BackendRedis, resultError).Inc()
		return err
	}
	if stored == 0 {
		observability.CacheOperations.WithLabelValues(BackendRedis, resultStale).Inc()
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	return r.client.Incr(ctx, redisGenerationKey).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
