package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/lookup"
	"github.com/sells-group/contact-finder/internal/metrics"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/profile"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/internal/runner"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/store"
	anthropicpkg "github.com/sells-group/contact-finder/pkg/anthropic"
	"github.com/sells-group/contact-finder/pkg/apollo"
	"github.com/sells-group/contact-finder/pkg/google"
	"github.com/sells-group/contact-finder/pkg/hunter"
	"github.com/sells-group/contact-finder/pkg/jina"
)

// finderEnv holds everything the serve and find commands share.
type finderEnv struct {
	Store   store.Store // may be nil
	Metrics *metrics.Metrics
	Manager *session.Manager
}

// Close releases resources held by the environment.
func (fe *finderEnv) Close() {
	if fe.Store != nil {
		_ = fe.Store.Close()
	}
}

// initFinder opens the store, builds the provider chain and the session
// manager. Callers should defer env.Close().
func initFinder(ctx context.Context, mode string) (*finderEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New()
	if err != nil {
		closeStore(st)
		return nil, eris.Wrap(err, "init metrics")
	}

	mgr := session.NewManager(session.NewRegistry(), buildRunner(cfg, st, m), session.Options{
		IdleTTL:       cfg.Session.IdleTTL(),
		AttachTimeout: cfg.Session.AttachTimeout(),
		OnFinish:      saveSession(st),
		Metrics:       m,
	})

	return &finderEnv{Store: st, Metrics: m, Manager: mgr}, nil
}

// initStore opens the configured store. It returns nil for driver "none".
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		zap.L().Warn("store disabled, caching and session history are off")
	}
	return st, nil
}

func closeStore(st store.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// saveSession persists finished sessions to st. It returns nil when there is
// no store.
func saveSession(st store.Store) session.FinishFunc {
	if st == nil {
		return nil
	}
	return func(ctx context.Context, rec model.SessionRecord) {
		if err := st.SaveSession(ctx, rec); err != nil {
			zap.L().Error("save session failed", zap.String("session_id", rec.ID), zap.Error(err))
		}
	}
}

// buildRunner wires the lookup, profile and email providers. st may be nil,
// which disables caching.
func buildRunner(c *config.Config, st store.Store, m *metrics.Metrics) *runner.Runner {
	retry := buildRetry(c)
	return runner.New(
		buildLookup(c, st, retry),
		buildExtractor(c, st, retry),
		buildResolver(c),
		m,
	)
}

func buildRetry(c *config.Config) resilience.RetryPolicy {
	return resilience.NewRetryPolicy(
		c.Retry.Attempts,
		time.Duration(c.Retry.BaseDelayMs)*time.Millisecond,
		time.Duration(c.Retry.MaxDelayMs)*time.Millisecond,
	)
}

func buildLookup(c *config.Config, st store.Store, retry resilience.RetryPolicy) lookup.Provider {
	client := google.NewClient(c.Google.CX, google.WithBaseURL(c.Google.BaseURL))
	var p lookup.Provider = lookup.NewGoogleProvider(
		client,
		lookup.NewKeyRing(c.Google.APIKeys),
		lookup.NewAdaptiveLimiter(c.Google.RatePerSec, c.Google.Burst),
		retry,
	)
	if st != nil {
		p = lookup.NewCachedProvider(p, st, hours(c.Google.CacheTTLHours))
	}
	return p
}

func buildExtractor(c *config.Config, st store.Store, retry resilience.RetryPolicy) profile.Extractor {
	var parser profile.Parser = profile.HeuristicParser{}
	if c.Profile.Parser == "llm" {
		parser = profile.NewLLMParser(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.HaikuModel, c.Anthropic.MaxTokens)
	}

	reader := jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL))
	var page profile.Extractor = profile.NewReaderExtractor(reader, parser, retry)
	if st != nil {
		page = profile.NewCachedExtractor(page, st, hours(c.Profile.CacheTTLHours))
	}

	extractors := []profile.Extractor{page}
	if c.Profile.SnippetFallback {
		extractors = append(extractors, profile.SnippetExtractor{})
	}
	return profile.NewChain(extractors...)
}

func buildResolver(c *config.Config) *email.Resolver {
	var primary, fallback email.Finder
	if c.Apollo.Key != "" {
		primary = email.NewApolloFinder(apollo.NewClient(c.Apollo.Key, apollo.WithBaseURL(c.Apollo.BaseURL)))
	} else {
		zap.L().Warn("apollo key not set, skipping apollo email lookup")
	}
	if c.Hunter.Key != "" {
		fallback = email.NewHunterFinder(hunter.NewClient(c.Hunter.Key, hunter.WithBaseURL(c.Hunter.BaseURL)))
	} else {
		zap.L().Warn("hunter key not set, skipping hunter email lookup")
	}
	if primary == nil {
		primary, fallback = fallback, nil
	}

	return email.NewResolver(primary, fallback, resilience.NewBreakers(resilience.BreakerConfig{
		Threshold: c.Email.BreakerThreshold,
		Cooldown:  time.Duration(c.Email.BreakerCooldownSecs) * time.Second,
	}))
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
