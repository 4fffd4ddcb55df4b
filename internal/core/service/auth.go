package service

import (
	"container/list"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// Authenticator defaults.
const (
	DefaultCacheTTL  = 60 * time.Second
	DefaultCacheSize = 1024
)

// AuthConfig configures an Authenticator. With neither APIKey nor
// APIKeyHash set, every request is accepted.
type AuthConfig struct {
	// APIKey is compared in constant time.
	APIKey string

	// APIKeyHash is an argon2id PHC string.
	APIKeyHash string

	// CacheTTL bounds how long a verified key skips argon2 (default: 60s).
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached keys (default: 1024).
	CacheSize int
}

// Authenticator verifies client API keys.
type Authenticator struct {
	plain []byte
	hash  string
	cache *KeyCache
}

// NewAuthenticator creates an Authenticator. The hash is checked for
// format up front so a bad configuration fails at startup.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if cfg.APIKeyHash != "" {
		if _, err := domain.VerifyAPIKey("", cfg.APIKeyHash); err != nil {
			return nil, err
		}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	a := &Authenticator{
		hash:  cfg.APIKeyHash,
		cache: NewKeyCache(cfg.CacheSize, cfg.CacheTTL),
	}
	if cfg.APIKey != "" {
		a.plain = []byte(cfg.APIKey)
	}
	return a, nil
}

// Enabled reports whether a key is required.
func (a *Authenticator) Enabled() bool {
	return a != nil && (a.plain != nil || a.hash != "")
}

// Authenticate returns nil when key is accepted and domain.ErrUnauthorized
// otherwise.
func (a *Authenticator) Authenticate(key string) error {
	if !a.Enabled() {
		return nil
	}
	if key == "" {
		return domain.ErrUnauthorized.WithDetails("api key required")
	}

	if a.plain != nil && subtle.ConstantTimeCompare([]byte(key), a.plain) == 1 {
		return nil
	}

	if a.hash != "" {
		fp := fingerprint(key)
		if a.cache.Get(fp) {
			return nil
		}
		if ok, err := domain.VerifyAPIKey(key, a.hash); err == nil && ok {
			a.cache.Set(fp)
			return nil
		}
	}

	return domain.ErrUnauthorized
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// KeyCache - LRU of recently verified keys
// ============================================================================

// KeyCache is an LRU set with TTL of key fingerprints.
type KeyCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	fp        string
	expiresAt time.Time
}

// NewKeyCache creates a KeyCache with LRU eviction.
func NewKeyCache(capacity int, ttl time.Duration) *KeyCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &KeyCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get reports whether fp is cached and unexpired, refreshing its recency.
func (c *KeyCache) Get(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fp]
	if !ok {
		return false
	}
	if time.Now().After(elem.Value.(*cacheEntry).expiresAt) {
		c.order.Remove(elem)
		delete(c.items, fp)
		return false
	}
	c.order.MoveToFront(elem)
	return true
}

// Set adds fp, evicting the least recently used entries at capacity.
func (c *KeyCache) Set(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fp]; ok {
		elem.Value.(*cacheEntry).expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		delete(c.items, oldest.Value.(*cacheEntry).fp)
		c.order.Remove(oldest)
	}

	c.items[fp] = c.order.PushFront(&cacheEntry{fp: fp, expiresAt: time.Now().Add(c.ttl)})
}

// Size returns the number of cached entries.
func (c *KeyCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// ============================================================================
// RateLimiterRegistry - per-client token buckets
// ============================================================================

// RateLimiterRegistry hands out one rate.Limiter per client.
type RateLimiterRegistry struct {
	limit   rate.Limit
	burst   int
	entries *cmap.Map[*limiterEntry]
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiterRegistry creates a registry allowing perSecond requests
// per client with a burst of the same size (at least 1).
func NewRateLimiterRegistry(perSecond float64) *RateLimiterRegistry {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterRegistry{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: cmap.New[*limiterEntry](),
	}
}

// Allow reports whether client may make a request now.
func (r *RateLimiterRegistry) Allow(client string) bool {
	e := r.entries.GetOrCompute(client, func() *limiterEntry {
		return &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
	})
	e.mu.Lock()
	e.lastSeen = time.Now()
	e.mu.Unlock()
	return e.limiter.Allow()
}

// Prune drops limiters idle for longer than idle and reports how many.
func (r *RateLimiterRegistry) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	return r.entries.DeleteIf(func(_ string, e *limiterEntry) bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.lastSeen.Before(cutoff)
	})
}

// Len returns the number of tracked clients.
func (r *RateLimiterRegistry) Len() int {
	return r.entries.Count()
}
