package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/pkg/google"
)

const (
	profilePathMarker = "linkedin.com/in/"
	resultsPerQuery   = 3
)

// GoogleProvider searches LinkedIn profiles through Google Custom Search.
type GoogleProvider struct {
	client  google.Client
	keys    *KeyRing
	limiter *AdaptiveLimiter
	retry   resilience.RetryPolicy
}

// NewGoogleProvider creates a provider. limiter may be nil to disable rate
// limiting.
func NewGoogleProvider(client google.Client, keys *KeyRing, limiter *AdaptiveLimiter, retry resilience.RetryPolicy) *GoogleProvider {
	if retry.BeforeRetry == nil {
		retry.BeforeRetry = resilience.LogRetry("google", "search")
	}
	return &GoogleProvider{client: client, keys: keys, limiter: limiter, retry: retry}
}

// Query builds the search expression for a role at a domain.
func Query(domain, role string) string {
	return fmt.Sprintf(`site:linkedin.com/in ("%s") "%s"`, role, domain)
}

// Find runs the search, rotating to the next key on every attempt so a
// rate-limited key is not retried immediately.
func (p *GoogleProvider) Find(ctx context.Context, domain, role string) (*model.ProfileRef, error) {
	if p.keys == nil || p.keys.Len() == 0 {
		return nil, ErrNoAPIKey
	}
	query := Query(domain, role)

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*google.SearchResponse, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "lookup: rate limiter wait")
			}
		}
		resp, err := p.client.Search(ctx, p.keys.Next(), query, resultsPerQuery)
		if err != nil {
			return nil, p.classify(err)
		}
		if p.limiter != nil {
			p.limiter.OnSuccess()
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "lookup: search %s / %s", domain, role)
	}

	for _, item := range resp.Items {
		if strings.Contains(item.Link, profilePathMarker) {
			zap.L().Debug("lookup: profile found",
				zap.String("domain", domain),
				zap.String("role", role),
				zap.String("url", item.Link),
			)
			return &model.ProfileRef{URL: item.Link, Title: item.Title, Snippet: item.Snippet}, nil
		}
	}
	return nil, nil
}

func (p *GoogleProvider) classify(err error) error {
	var apiErr *google.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		if p.limiter != nil {
			p.limiter.OnRateLimit()
		}
		return resilience.NewTransientError(eris.Wrap(ErrRateLimited, apiErr.Error()), apiErr.StatusCode)
	}
	if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}
