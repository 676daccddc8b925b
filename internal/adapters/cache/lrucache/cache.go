package lrucache

import (
	"context"
	"strings"
	"sync"
	"time"

	"vet-scheduling/internal/ports/slotcache"

	lru "github.com/hashicorp/golang-lru/v2"
)

const dateLayout = "2006-01-02"

type entry struct {
	days    []slotcache.Day
	expires time.Time
}

// Cache es el cache de slots libres en proceso (una sola instancia del API).
type Cache struct {
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	gens map[string]int64 // por vet; Invalidate la incrementa
}

func New(size int, ttl time.Duration) (*Cache, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c, ttl: ttl, now: time.Now, gens: make(map[string]int64)}, nil
}

func (c *Cache) Get(ctx context.Context, vetID string, from time.Time) ([]slotcache.Day, int64, bool, error) {
	c.mu.Lock()
	gen := c.gens[vetID]
	c.mu.Unlock()

	key := cacheKey(vetID, from)
	e, ok := c.cache.Get(key)
	if !ok {
		return nil, gen, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		c.cache.Remove(key)
		return nil, gen, false, nil
	}
	return cloneDays(e.days), gen, true, nil
}

// Set descarta el valor si el vet fue invalidado después del Get que dio gen.
func (c *Cache) Set(ctx context.Context, vetID string, from time.Time, gen int64, days []slotcache.Day) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[vetID] != gen {
		return nil
	}
	c.cache.Add(cacheKey(vetID, from), entry{
		days:    cloneDays(days),
		expires: c.now().Add(c.ttl),
	})
	return nil
}

// Invalidate borra todas las ventanas (from) cacheadas del vet.
func (c *Cache) Invalidate(ctx context.Context, vetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[vetID]++
	prefix := vetID + "|"
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
		}
	}
	return nil
}

func cacheKey(vetID string, from time.Time) string {
	return vetID + "|" + from.UTC().Format(dateLayout)
}

func cloneDays(in []slotcache.Day) []slotcache.Day {
	out := make([]slotcache.Day, len(in))
	for i, d := range in {
		out[i] = slotcache.Day{Date: d.Date, Slots: append([]string(nil), d.Slots...)}
	}
	return out
}
