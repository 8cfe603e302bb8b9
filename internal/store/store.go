// Package store persists the profile cache and finished session history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// ErrNotFound is returned by GetSession for unknown ids.
var ErrNotFound = eris.New("store: not found")

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Status       model.SessionStatus `json:"status,omitempty"`
	CreatedAfter time.Time           `json:"created_after,omitempty"`
	Limit        int                 `json:"limit,omitempty"`
	Offset       int                 `json:"offset,omitempty"`
}

// Store defines persistence for the contact finder.
type Store interface {
	// Profile cache. Values are opaque JSON owned by the caller; a miss or
	// an expired entry returns nil, nil.
	GetCachedProfile(ctx context.Context, key string) ([]byte, error)
	SetCachedProfile(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpiredProfiles(ctx context.Context) (int, error)

	// Session history
	SaveSession(ctx context.Context, rec model.SessionRecord) error
	GetSession(ctx context.Context, id string) (*model.SessionRecord, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func listLimit(f SessionFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
