package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/config"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisPrincipalCache struct {
	client *redis.Client
	prefix string
}

func NewRedisPrincipalCache(cfg config.RedisConfig, prefix string) (*RedisPrincipalCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPrincipalCache{client: client, prefix: prefix}, nil
}

func (c *RedisPrincipalCache) key(id string) string {
	return fmt.Sprintf("%s:id:%s", c.prefix, id)
}

func (c *RedisPrincipalCache) Get(ctx context.Context, id string) (*domain.Principal, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &p, nil
}

func (c *RedisPrincipalCache) Set(ctx context.Context, p *domain.Principal, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, c.key(p.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisPrincipalCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

func (c *RedisPrincipalCache) Close() error {
	return c.client.Close()
}

// NoopPrincipalCache always misses. It stands in when caching is disabled.
type NoopPrincipalCache struct{}

func (NoopPrincipalCache) Get(context.Context, string) (*domain.Principal, error) {
	return nil, ErrCacheMiss
}

func (NoopPrincipalCache) Set(context.Context, *domain.Principal, time.Duration) error { return nil }

func (NoopPrincipalCache) Delete(context.Context, ...string) error { return nil }

func (NoopPrincipalCache) Close() error { return nil }
