package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "recruitsql:"

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Cache stores synthesized candidates in Redis. Misses and failures are
// reported separately so callers can fall through to the model.
type Cache struct {
	client client
	prefix string
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewWithClient(rdb, cfg.Prefix), nil
}

func NewWithClient(c client, prefix string) *Cache {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: c, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
