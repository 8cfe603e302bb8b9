package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) GetCachedProfile(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data[key], nil
}

func (m *memCache) SetCachedProfile(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

type countingProvider struct {
	calls int
	ref   *model.ProfileRef
	err   error
}

func (p *countingProvider) Find(context.Context, string, string) (*model.ProfileRef, error) {
	p.calls++
	return p.ref, p.err
}

func TestCachedProvider_HitSkipsUpstream(t *testing.T) {
	up := &countingProvider{ref: &model.ProfileRef{URL: "https://linkedin.com/in/jane"}}
	c := NewCachedProvider(up, newMemCache(), 0)

	for range 2 {
		ref, err := c.Find(context.Background(), "acme.com", "CFO")
		require.NoError(t, err)
		assert.Equal(t, "https://linkedin.com/in/jane", ref.URL)
	}
	assert.Equal(t, 1, up.calls)
}

func TestCachedProvider_NotFoundNotCached(t *testing.T) {
	up := &countingProvider{}
	cache := newMemCache()
	c := NewCachedProvider(up, cache, time.Hour)

	for range 2 {
		ref, err := c.Find(context.Background(), "acme.com", "CFO")
		require.NoError(t, err)
		assert.Nil(t, ref)
	}
	assert.Equal(t, 2, up.calls)
	assert.Empty(t, cache.data)
}

func TestCachedProvider_ErrorPassesThrough(t *testing.T) {
	up := &countingProvider{err: errors.New("boom")}
	c := NewCachedProvider(up, newMemCache(), time.Hour)

	_, err := c.Find(context.Background(), "acme.com", "CFO")
	assert.EqualError(t, err, "boom")
}

func TestCachedProvider_CacheReadFailureFallsThrough(t *testing.T) {
	up := &countingProvider{ref: &model.ProfileRef{URL: "u"}}
	cache := newMemCache()
	cache.readErr = errors.New("db locked")
	c := NewCachedProvider(up, cache, time.Hour)

	ref, err := c.Find(context.Background(), "acme.com", "CFO")
	require.NoError(t, err)
	assert.Equal(t, "u", ref.URL)
}

func TestCacheKey_Normalizes(t *testing.T) {
	assert.Equal(t, CacheKey("acme.com", "cfo"), CacheKey("ACME.com", " CFO "))
}
