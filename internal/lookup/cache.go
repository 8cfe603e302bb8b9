package lookup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
)

// DefaultCacheTTL is how long a found profile reference is reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache is the slice of the store the cached provider needs.
type Cache interface {
	GetCachedProfile(ctx context.Context, key string) ([]byte, error)
	SetCachedProfile(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CachedProvider serves repeated (domain, role) lookups from a cache. Only
// found references are cached, so a miss is retried on the next batch.
// Cache failures are logged and never fail the lookup.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

// CacheKey returns the cache key for a lookup.
func CacheKey(domain, role string) string {
	return "lookup:" + strings.ToLower(domain) + "|" + strings.ToLower(strings.TrimSpace(role))
}

func (c *CachedProvider) Find(ctx context.Context, domain, role string) (*model.ProfileRef, error) {
	log := zap.L().With(zap.String("domain", domain), zap.String("role", role))
	key := CacheKey(domain, role)

	cached, err := c.cache.GetCachedProfile(ctx, key)
	if err != nil {
		log.Debug("lookup: cache read failed", zap.Error(err))
	}
	if cached != nil {
		var ref model.ProfileRef
		if err := json.Unmarshal(cached, &ref); err == nil && ref.URL != "" {
			log.Debug("lookup: using cached profile ref")
			return &ref, nil
		}
	}

	ref, err := c.next.Find(ctx, domain, role)
	if err != nil || ref == nil {
		return ref, err
	}

	if data, err := json.Marshal(ref); err == nil {
		if err := c.cache.SetCachedProfile(ctx, key, data, c.ttl); err != nil {
			log.Debug("lookup: cache write failed", zap.Error(err))
		}
	}
	return ref, nil
}
