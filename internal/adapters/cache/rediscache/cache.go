package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vet-scheduling/internal/ports/slotcache"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "vetsched:slots"

// Cache comparte los slots libres entre réplicas del API.
// Cada vet tiene un número de versión; invalidar es un INCR y las claves
// viejas mueren solas por TTL.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func New(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: defaultPrefix}
}

func (c *Cache) Get(ctx context.Context, vetID string, from time.Time) ([]slotcache.Day, int64, bool, error) {
	ver, err := c.version(ctx, vetID)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, c.dataKey(vetID, ver, from)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ver, false, nil
	}
	if err != nil {
		return nil, ver, false, fmt.Errorf("redis get: %w", err)
	}

	var days []slotcache.Day
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, ver, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return days, ver, true, nil
}

// Set escribe bajo la versión que vio Get. Si hubo un INCR en el medio la
// clave ya no es alcanzable y expira sola.
func (c *Cache) Set(ctx context.Context, vetID string, from time.Time, ver int64, days []slotcache.Day) error {
	if days == nil {
		days = []slotcache.Day{}
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	if err := c.client.Set(ctx, c.dataKey(vetID, ver, from), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, vetID string) error {
	if err := c.client.Incr(ctx, c.versionKey(vetID)).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

func (c *Cache) version(ctx context.Context, vetID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(vetID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version: %w", err)
	}
	return v, nil
}

func (c *Cache) versionKey(vetID string) string {
	return fmt.Sprintf("%s:%s:ver", c.prefix, vetID)
}

func (c *Cache) dataKey(vetID string, ver int64, from time.Time) string {
	return fmt.Sprintf("%s:%s:v%d:%s", c.prefix, vetID, ver, from.UTC().Format("2006-01-02"))
}
