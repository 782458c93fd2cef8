// Package distcache caches pairwise unit distances in Redis. The cache is
// optional; a nil client degrades every lookup to a miss and callers compute
// distances themselves.
package distcache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/PublicMapping/districtcore/internal/metrics"
)

// Cache stores unit-pair distances keyed by the two unit IDs in sorted order,
// so (a,b) and (b,a) share an entry.
type Cache struct {
	client *redis.Client
}

// Open creates a cache client. An empty address returns a disabled cache.
func Open(addr, password string, db int) *Cache {
	if addr == "" {
		return &Cache{}
	}
	return &Cache{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// Enabled reports whether a backing client exists.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached distance for a unit pair. The second return is false
// on a miss, a disabled cache, or a transport error.
func (c *Cache) Get(ctx context.Context, unitA, unitB string) (float64, bool) {
	if !c.Enabled() {
		metrics.DistCacheMisses.Inc()
		return 0, false
	}
	val, err := c.client.Get(ctx, pairKey(unitA, unitB)).Result()
	if err != nil {
		metrics.DistCacheMisses.Inc()
		return 0, false
	}
	d, err := strconv.ParseFloat(val, 64)
	if err != nil {
		metrics.DistCacheMisses.Inc()
		return 0, false
	}
	metrics.DistCacheHits.Inc()
	return d, true
}

// Put stores the distance for a unit pair. Errors are ignored; the cache is
// advisory.
func (c *Cache) Put(ctx context.Context, unitA, unitB string, distance float64) {
	if !c.Enabled() {
		return
	}
	c.client.Set(ctx, pairKey(unitA, unitB), strconv.FormatFloat(distance, 'g', -1, 64), 0)
}

// Close releases the client connection.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("dist:%s:%s", a, b)
}
