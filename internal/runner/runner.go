// Package runner executes a session's work units one at a time against the
// lookup, profile and email collaborators.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/lookup"
	"github.com/sells-group/contact-finder/internal/metrics"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/profile"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/workunit"
)

// ErrSinkFailed means an event could not be delivered to the session. It is
// the only failure that ends a session as errored.
var ErrSinkFailed = eris.New("runner: event sink failed")

// EmailResolver resolves an email for an identity at a domain.
type EmailResolver interface {
	Resolve(ctx context.Context, id model.Identity, domain string) email.Resolution
}

// Runner processes work units sequentially. It implements session.Runner.
type Runner struct {
	lookup    lookup.Provider
	extractor profile.Extractor
	resolver  EmailResolver
	metrics   *metrics.Metrics
}

// New creates a Runner. m may be nil.
func New(p lookup.Provider, x profile.Extractor, r EmailResolver, m *metrics.Metrics) *Runner {
	return &Runner{lookup: p, extractor: x, resolver: r, metrics: m}
}

// Run processes units in order, checking for a stop request before each
// one, and ends with exactly one complete or stopped event. Only a failing
// Emit is returned as an error.
func (r *Runner) Run(ctx context.Context, units []model.WorkUnit, ctl session.Control) error {
	log := zap.L().With(zap.String("session_id", ctl.ID()))
	results := make([]model.ContactRow, 0, len(units))

	for i, u := range units {
		if ctl.StopRequested() || ctx.Err() != nil {
			log.Info("runner: stopped", zap.Int("processed", len(results)), zap.Int("total", len(units)))
			return emit(ctl, model.StoppedEvent(results))
		}
		if err := emit(ctl, model.ProgressEvent(i+1, len(units), u.Domain, u.Role)); err != nil {
			return err
		}

		start := time.Now()
		c, outcome, unitErr := r.process(ctx, u)
		r.metrics.ObserveUnit(ctx, outcome, time.Since(start))

		if unitErr != nil {
			if err := emit(ctl, model.UnitErrorEvent(unitErr.Error())); err != nil {
				return err
			}
		}
		if err := emit(ctl, model.ResultEvent(c)); err != nil {
			return err
		}
		results = append(results, c.Row())
	}

	log.Info("runner: complete", zap.Int("processed", len(results)))
	return emit(ctl, model.CompleteEvent(results))
}

func emit(ctl session.Control, ev model.Event) error {
	if err := ctl.Emit(ev); err != nil {
		return eris.Wrapf(ErrSinkFailed, "runner: emit %s: %v", ev.Type, err)
	}
	return nil
}

// process resolves one unit. Collaborator failures and panics degrade the
// contact; the returned error is only for visibility.
func (r *Runner) process(ctx context.Context, u model.WorkUnit) (c model.Contact, outcome string, unitErr error) {
	domain := workunit.NormalizeDomain(u.Domain)
	log := zap.L().With(zap.String("domain", domain), zap.String("role", u.Role))

	defer func() {
		if p := recover(); p != nil {
			log.Error("runner: unit panicked", zap.Any("panic", p))
			c = model.DegradedContact(domain, u.Role, model.Errored(), model.Errored())
			outcome = metrics.OutcomeError
			unitErr = fmt.Errorf("%s %s: internal error", domain, u.Role)
		}
	}()

	if !workunit.ValidDomain(domain) {
		log.Warn("runner: invalid domain")
		return model.DegradedContact(domain, model.MatchedRoleInvalidDomain, model.NotFound(), model.NotFound()),
			metrics.OutcomeInvalidDomain, nil
	}

	ref, err := r.lookup.Find(ctx, domain, u.Role)
	if err != nil {
		log.Warn("runner: lookup failed", zap.Error(err))
		return model.DegradedContact(domain, u.Role, model.Errored(), model.Errored()),
			metrics.OutcomeError, fmt.Errorf("%s %s: lookup failed: %w", domain, u.Role, err)
	}
	if ref == nil {
		log.Info("runner: no profile found")
		return model.DegradedContact(domain, u.Role, model.NotFound(), model.NotFound()),
			metrics.OutcomeNoProfile, nil
	}
	linkedIn := model.Found(ref.URL)

	p, err := r.extractor.Extract(ctx, *ref)
	if err != nil {
		log.Warn("runner: profile extraction failed", zap.String("url", ref.URL), zap.Error(err))
		return model.DegradedContact(domain, u.Role, model.Errored(), linkedIn),
			metrics.OutcomeError, fmt.Errorf("%s %s: profile extraction failed: %w", domain, u.Role, err)
	}
	if p == nil || p.Name == "" {
		log.Info("runner: profile had no usable details", zap.String("url", ref.URL))
		return model.DegradedContact(domain, u.Role, model.NotFound(), linkedIn),
			metrics.OutcomeNoProfile, nil
	}

	c = model.Contact{
		Domain:      domain,
		MatchedRole: u.Role,
		Name:        model.Found(p.Name),
		Title:       model.Found(p.Title),
		LinkedInURL: linkedIn,
	}
	res := r.resolver.Resolve(ctx, model.Identity{FullName: p.Name, Title: p.Title}, domain)
	c.Email = res.Field()

	switch {
	case res.Err != nil:
		outcome = metrics.OutcomeError
		unitErr = fmt.Errorf("%s %s: email lookup failed: %w", domain, u.Role, res.Err)
	case res.Email == "":
		outcome = metrics.OutcomeNoEmail
	default:
		outcome = metrics.OutcomeFound
	}
	log.Info("runner: unit processed", zap.String("name", p.Name), zap.String("outcome", outcome))
	return c, outcome, unitErr
}
