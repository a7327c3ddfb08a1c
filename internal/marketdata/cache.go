package marketdata

import (
	"sync"
	"time"

	"github.com/quantfolio/marketdata/internal/observ"
)

// Default TTLs per data type. Quotes churn constantly, candle history is
// stable for minutes, search results sit in between.
const (
	DefaultQuoteTTL  = 30 * time.Second
	DefaultCandleTTL = 5 * time.Minute
	DefaultSearchTTL = 60 * time.Second
)

type cacheEntry[T any] struct {
	data     T
	cachedAt time.Time
}

// ttlCache is a read-through cache: an entry older than the TTL reads as a
// miss but is not removed until the next Set shadows it. No background
// sweeping.
type ttlCache[T any] struct {
	mu      sync.RWMutex
	name    string
	ttl     time.Duration
	entries map[string]cacheEntry[T]
	now     func() time.Time
}

func newTTLCache[T any](name string, ttl time.Duration, now func() time.Time) *ttlCache[T] {
	if now == nil {
		now = time.Now
	}
	return &ttlCache[T]{
		name:    name,
		ttl:     ttl,
		entries: make(map[string]cacheEntry[T]),
		now:     now,
	}
}

func (c *ttlCache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok || c.now().Sub(entry.cachedAt) >= c.ttl {
		observ.IncCounter("marketdata_cache_miss_total", map[string]string{"cache": c.name})
		return zero, false
	}
	observ.IncCounter("marketdata_cache_hit_total", map[string]string{"cache": c.name})
	return entry.data, true
}

func (c *ttlCache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[T]{data: value, cachedAt: c.now()}
	size := len(c.entries)
	c.mu.Unlock()
	observ.SetGauge("marketdata_cache_size", float64(size), map[string]string{"cache": c.name})
}

func (c *ttlCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()
	observ.SetGauge("marketdata_cache_size", 0, map[string]string{"cache": c.name})
}

// len reports raw map size, stale entries included.
func (c *ttlCache[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
