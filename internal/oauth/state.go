package oauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds short-lived, single-use values: consent states and the
// one-time codes handed to the site after a callback.
type StateStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Take returns the value and deletes it. ok is false for unknown or
	// expired keys.
	Take(ctx context.Context, key string) (value string, ok bool, err error)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStateStore is used when no Redis is configured. It only works for a
// single instance.
type MemoryStateStore struct {
	entries sync.Map
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (m *MemoryStateStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.entries.Store(key, memoryEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryStateStore) Take(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries.LoadAndDelete(key)
	if !ok {
		return "", false, nil
	}
	entry, ok := v.(memoryEntry)
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Sweep drops expired entries.
func (m *MemoryStateStore) Sweep() {
	now := time.Now()
	m.entries.Range(func(key, value interface{}) bool {
		if e, ok := value.(memoryEntry); ok && now.After(e.expiresAt) {
			m.entries.Delete(key)
		}
		return true
	})
}

// StartSweeper runs Sweep every minute until ctx is done.
func (m *MemoryStateStore) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

type RedisStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "oauth:"}
}

func (r *RedisStateStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisStateStore) Take(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.GetDel(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
