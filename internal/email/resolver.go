// Package email resolves a business email for an extracted identity using a
// primary finder with a fallback.
package email

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/resilience"
)

// Finder looks up an email for a person at a domain. An empty string with a
// nil error means the finder has no address for them.
type Finder interface {
	Name() string
	Find(ctx context.Context, id model.Identity, domain string) (string, error)
}

// Resolution is the outcome of Resolve. Err is set only when every finder
// that was tried failed; a plain miss leaves both Email and Err empty.
type Resolution struct {
	Email    string
	Provider string
	Err      error
}

// Field converts the resolution into a contact field.
func (r Resolution) Field() model.Field {
	switch {
	case r.Email != "":
		return model.Found(r.Email)
	case r.Err != nil:
		return model.Errored()
	default:
		return model.NotFound()
	}
}

// Resolver tries Primary and then Fallback whenever Primary produced no
// email, including when it failed.
type Resolver struct {
	primary  Finder
	fallback Finder
	breakers *resilience.Breakers
}

// NewResolver creates a Resolver. fallback may be nil. A nil breakers
// registry gets one with default thresholds.
func NewResolver(primary, fallback Finder, breakers *resilience.Breakers) *Resolver {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerConfig{})
	}
	return &Resolver{primary: primary, fallback: fallback, breakers: breakers}
}

// Resolve returns the first email found. Context cancellation is reported as
// an error so the caller can tell it apart from a miss.
func (r *Resolver) Resolve(ctx context.Context, id model.Identity, domain string) Resolution {
	log := zap.L().With(zap.String("domain", domain), zap.String("name", id.FullName))

	var errs []error
	attempted := 0
	for _, f := range []Finder{r.primary, r.fallback} {
		if f == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Resolution{Err: err}
		}
		attempted++
		email, err := resilience.CallVal(ctx, r.breakers.For(f.Name()), func(ctx context.Context) (string, error) {
			return f.Find(ctx, id, domain)
		})
		if err != nil {
			log.Warn("email: finder failed", zap.String("finder", f.Name()), zap.Error(err))
			errs = append(errs, eris.Wrapf(err, "email: %s", f.Name()))
			continue
		}
		if email != "" {
			log.Debug("email: found", zap.String("finder", f.Name()))
			return Resolution{Email: email, Provider: f.Name()}
		}
		log.Debug("email: finder has no address", zap.String("finder", f.Name()))
	}
	if attempted > 0 && len(errs) == attempted {
		return Resolution{Err: errors.Join(errs...)}
	}
	return Resolution{}
}
