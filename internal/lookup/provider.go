// Package lookup finds the professional profile matching a (domain, role)
// pair.
package lookup

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

var (
	// ErrRateLimited means every attempt was rejected with HTTP 429.
	ErrRateLimited = eris.New("lookup: rate limited")
	// ErrNoAPIKey means the provider has no credentials configured.
	ErrNoAPIKey = eris.New("lookup: no api key configured")
)

// Provider finds a candidate profile for a role at a company domain. A nil
// ref with a nil error means nothing matched.
type Provider interface {
	Find(ctx context.Context, domain, role string) (*model.ProfileRef, error)
}

// KeyRing hands out API keys round-robin. It is safe for concurrent use.
type KeyRing struct {
	keys []string
	next atomic.Uint64
}

// NewKeyRing creates a ring over keys, dropping empty entries.
func NewKeyRing(keys []string) *KeyRing {
	r := &KeyRing{}
	for _, k := range keys {
		if k != "" {
			r.keys = append(r.keys, k)
		}
	}
	return r
}

// Len returns the number of usable keys.
func (r *KeyRing) Len() int { return len(r.keys) }

// Next returns the next key, or "" when the ring is empty.
func (r *KeyRing) Next() string {
	if len(r.keys) == 0 {
		return ""
	}
	i := r.next.Add(1) - 1
	return r.keys[i%uint64(len(r.keys))]
}
