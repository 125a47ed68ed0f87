package crm

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ContactCache remembers CRM contact ids by email so repeat submitters skip
// the contact search.
type ContactCache interface {
	Get(ctx context.Context, email string) (string, bool, error)
	Set(ctx context.Context, email, contactID string) error
}

type RedisContactCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisContactCache(client *redis.Client, ttl time.Duration) *RedisContactCache {
	return &RedisContactCache{client: client, ttl: ttl, prefix: "crm:contact:"}
}

func (c *RedisContactCache) Get(ctx context.Context, email string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.prefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *RedisContactCache) Set(ctx context.Context, email, contactID string) error {
	return c.client.Set(ctx, c.prefix+email, contactID, c.ttl).Err()
}
