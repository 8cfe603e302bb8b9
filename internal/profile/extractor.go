// Package profile extracts a person's name and title from a profile page
// found by lookup.
package profile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
)

var (
	// ErrAccessBlocked means the page came back as a login or auth wall.
	ErrAccessBlocked = eris.New("profile: access blocked")
	// ErrParse means the page was fetched but could not be parsed.
	ErrParse = eris.New("profile: parse failed")
)

// Extractor turns a profile reference into profile details. A nil profile
// with a nil error means the page held nothing usable.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, ref model.ProfileRef) (*model.Profile, error)
}

// Chain tries extractors in order and returns the first profile found.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a Chain. Extractors are tried in the given order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

func (c *Chain) Name() string { return "chain" }

// Extract returns the first non-nil profile. When none is found it returns
// the last error, or nil, nil if every extractor came back empty.
func (c *Chain) Extract(ctx context.Context, ref model.ProfileRef) (*model.Profile, error) {
	var lastErr error
	for _, e := range c.extractors {
		p, err := e.Extract(ctx, ref)
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Debug("profile: extractor failed, trying next",
				zap.String("extractor", e.Name()),
				zap.String("url", ref.URL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "profile: all extractors failed")
	}
	return nil, nil
}
