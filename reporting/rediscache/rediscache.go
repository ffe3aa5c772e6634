// Package rediscache is a Redis-backed reporting.Cache.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/jaspel-engine/reporting"
)

type Cache struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *Cache) key(k reporting.Key) string {
	return c.prefix + k.String()
}

func (c *Cache) Get(ctx context.Context, k reporting.Key) (reporting.Summary, bool, error) {
	raw, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return reporting.Summary{}, false, nil
	}
	if err != nil {
		return reporting.Summary{}, false, fmt.Errorf("redis get %s: %w", k, err)
	}
	var s reporting.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		// Treat undecodable entries as a miss; the next Set overwrites them.
		return reporting.Summary{}, false, nil
	}
	return s, true, nil
}

func (c *Cache) Set(ctx context.Context, k reporting.Key, s reporting.Summary, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(k), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...reporting.Key) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = c.key(k)
	}
	if err := c.client.Del(ctx, names...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge deletes every summary under the cache prefix.
func (c *Cache) Purge(ctx context.Context) error {
	var names []string
	iter := c.client.Scan(ctx, 0, c.prefix+reporting.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(names) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, names...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var _ reporting.Cache = (*Cache)(nil)
