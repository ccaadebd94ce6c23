// Package cache is a redis-backed key/value cache split into named buckets.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a store whose buckets expire entries after ttl. A zero ttl
// keeps entries until they are dropped.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Bucket returns the namespace name. Keys are stored as "<name>:<key>".
func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{client: s.client, name: name, ttl: s.ttl}
}

type Bucket struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

func (b *Bucket) key(k string) string {
	return b.name + ":" + k
}

// Get decodes the entry for key into dest and reports whether it was found.
func (b *Bucket) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", b.key(key), err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", b.key(key), err)
	}
	return true, nil
}

func (b *Bucket) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", b.key(key), err)
	}
	if err := b.client.Set(ctx, b.key(key), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", b.key(key), err)
	}
	return nil
}

// Drop removes the given keys. Empty keys are ignored.
func (b *Bucket) Drop(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, b.key(k))
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache drop: %w", err)
	}
	return nil
}
