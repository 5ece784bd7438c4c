// Package geo resolves client IP addresses to a country and city so dispatched
// events can carry hashed location identifiers.
package geo

import (
	"errors"
	"sync"
	"time"

	"github.com/radiusdt/stayvalue/internal/metrics"
)

// ErrNotFound is returned when the database has no record for an IP.
var ErrNotFound = errors.New("geo: no record for ip")

// Info holds geographic information for an IP.
type Info struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	PostalCode  string
	Latitude    float64
	Longitude   float64
	Timezone    string
}

// Provider looks up a single IP.
type Provider interface {
	Lookup(ip string) (*Info, error)
	Close() error
}

// Resolver wraps a Provider with a TTL cache.
type Resolver struct {
	provider Provider
	cache    *cache
	metrics  *metrics.Metrics
}

// NewResolver creates a resolver. A nil provider resolves nothing.
func NewResolver(provider Provider, cacheSize int, cacheTTL time.Duration, m *metrics.Metrics) *Resolver {
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	return &Resolver{
		provider: provider,
		cache: &cache{
			data:    make(map[string]*cacheEntry),
			maxSize: cacheSize,
			ttl:     cacheTTL,
		},
		metrics: m,
	}
}

// Lookup returns geo info for ip, or nil when unknown. Lookup failures are
// not cached.
func (r *Resolver) Lookup(ip string) *Info {
	if r == nil || ip == "" || r.provider == nil {
		return nil
	}

	start := time.Now()
	if info, ok := r.cache.get(ip); ok {
		r.metrics.RecordGeoLookup(true, time.Since(start))
		return info
	}

	info, err := r.provider.Lookup(ip)
	if err != nil || info == nil {
		return nil
	}

	r.cache.set(ip, info)
	r.metrics.RecordGeoLookup(false, time.Since(start))

	return info
}

// Close releases the provider.
func (r *Resolver) Close() error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

// ===========================================
// CACHE
// ===========================================

type cache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	info      *Info
	expiresAt time.Time
}

func (c *cache) get(ip string) (*Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[ip]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.info, true
}

func (c *cache) set(ip string, info *Info) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if at capacity
	if _, exists := c.data[ip]; !exists && len(c.data) >= c.maxSize {
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}

	c.data[ip] = &cacheEntry{
		info:      info,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
