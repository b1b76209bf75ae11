package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xstater/tablex/core"
	"github.com/xstater/tablex/logger"
)

// RedisClient is the subset of the go-redis API the cache needs.
// *redis.Client and *redis.ClusterClient implement it.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisCache caches query results in Redis, encoded with msgpack.
// Caching is enabled per call with WithCacheTTL.
type RedisCache struct {
	Client RedisClient
	logger logger.Logger
}

// NewRedisCache connects a new client with opt.
func NewRedisCache(opt *redis.Options) *RedisCache {
	return &RedisCache{
		Client: redis.NewClient(opt),
	}
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(c RedisClient) *RedisCache {
	return &RedisCache{Client: c}
}

func (m *RedisCache) Name() string {
	return "RedisCache"
}

func (m *RedisCache) Init(db *core.DB) error {
	m.logger = db.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx).Err()
}

func (m *RedisCache) Shutdown() error {
	return m.Client.Close()
}

func (m *RedisCache) Process(ctx context.Context, call *core.Call, next core.Handler) (*core.Result, error) {
	ttl, ok := cacheTTL(ctx, call)
	if !ok {
		return next(ctx, call)
	}
	if ttl < 0 {
		// redis treats 0 as no expiry
		ttl = 0
	}
	key := cacheKey(call)

	data, err := m.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := decodeInto(data, call.Dest); err == nil {
			return cachedResult(call), nil
		}
	case !errors.Is(err, redis.Nil):
		m.warn("cache read %s: %v", key, err)
	}

	res, err := next(ctx, call)
	if err != nil {
		return res, err
	}

	data, err = encode(call.Dest)
	if err != nil {
		return res, nil
	}
	if err := m.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		m.warn("cache write %s: %v", key, err)
	}
	return res, nil
}

func (m *RedisCache) warn(format string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(format, args...)
	}
}
