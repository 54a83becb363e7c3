package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service on Redis. Every key is namespaced under a prefix so
// several deployments can share one database.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption adjusts the client options or the key namespace.
type RedisOption func(*redisSetup)

type redisSetup struct {
	opts   redis.Options
	prefix string
}

func WithRedisAddr(host string, port int) RedisOption {
	return func(s *redisSetup) { s.opts.Addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(s *redisSetup) {
		s.opts.Password = password
		s.opts.DB = db
	}
}

// WithRedisPool sizes the pool; zero values keep the go-redis defaults.
func WithRedisPool(size, minIdle int, wait time.Duration) RedisOption {
	return func(s *redisSetup) {
		s.opts.PoolSize = size
		s.opts.MinIdleConns = minIdle
		s.opts.PoolTimeout = wait
	}
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *redisSetup) { s.prefix = prefix }
}

// NewRedisCache connects and pings Redis; an unreachable server is an error.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	setup := redisSetup{
		opts:   redis.Options{Addr: "localhost:6379", PoolSize: 10, MinIdleConns: 2},
		prefix: "quant",
	}
	for _, opt := range opts {
		opt(&setup)
	}
	client := redis.NewClient(&setup.opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", setup.opts.Addr, err)
	}
	return &RedisCache{client: client, prefix: setup.prefix}, nil
}

// Client exposes the connection pool, shared with the Redis job queue.
func (c *RedisCache) Client() *redis.Client { return c.client }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.wrapKey(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return decode(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = c.wrapKey(key)
	}
	return c.client.Unlink(ctx, wrapped...).Err()
}

// TryLock is a SET NX with expiry; the value is informational only.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.wrapKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.wrapKey(key)).Err()
}

func (c *RedisCache) wrapKey(key string) string {
	return c.prefix + ":" + key
}
