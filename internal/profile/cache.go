package profile

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
)

// DefaultCacheTTL is how long an extracted profile is reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache is the slice of the store the cached extractor needs.
type Cache interface {
	GetCachedProfile(ctx context.Context, key string) ([]byte, error)
	SetCachedProfile(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CachedExtractor reuses profiles extracted from the same URL.
type CachedExtractor struct {
	next  Extractor
	cache Cache
	ttl   time.Duration
}

// NewCachedExtractor wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachedExtractor(next Extractor, cache Cache, ttl time.Duration) *CachedExtractor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedExtractor{next: next, cache: cache, ttl: ttl}
}

func (c *CachedExtractor) Name() string { return "cached_" + c.next.Name() }

func (c *CachedExtractor) Extract(ctx context.Context, ref model.ProfileRef) (*model.Profile, error) {
	log := zap.L().With(zap.String("url", ref.URL))
	key := "profile:" + ref.URL

	if cached, err := c.cache.GetCachedProfile(ctx, key); err != nil {
		log.Debug("profile: cache read failed", zap.Error(err))
	} else if cached != nil {
		var p model.Profile
		if err := json.Unmarshal(cached, &p); err == nil && p.Name != "" {
			log.Debug("profile: using cached profile")
			return &p, nil
		}
	}

	p, err := c.next.Extract(ctx, ref)
	if err != nil || p == nil {
		return p, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.cache.SetCachedProfile(ctx, key, data, c.ttl); err != nil {
			log.Debug("profile: cache write failed", zap.Error(err))
		}
	}
	return p, nil
}
