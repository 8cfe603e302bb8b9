package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/pkg/jina"
)

// Parser turns profile page markdown into profile details.
type Parser interface {
	Parse(ctx context.Context, markdown string, ref model.ProfileRef) (*model.Profile, error)
}

// ReaderExtractor fetches the profile page through Jina Reader and hands the
// markdown to a Parser.
type ReaderExtractor struct {
	reader jina.Client
	parser Parser
	retry  resilience.RetryPolicy
}

// NewReaderExtractor creates a ReaderExtractor.
func NewReaderExtractor(reader jina.Client, parser Parser, retry resilience.RetryPolicy) *ReaderExtractor {
	if retry.BeforeRetry == nil {
		retry.BeforeRetry = resilience.LogRetry("jina", "read")
	}
	return &ReaderExtractor{reader: reader, parser: parser, retry: retry}
}

func (r *ReaderExtractor) Name() string { return "reader" }

func (r *ReaderExtractor) Extract(ctx context.Context, ref model.ProfileRef) (*model.Profile, error) {
	resp, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := r.reader.Read(ctx, ref.URL)
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return resp, err
	})
	if err != nil {
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403 || apiErr.StatusCode == 999) {
			return nil, eris.Wrapf(ErrAccessBlocked, "profile: read %s: status %d", ref.URL, apiErr.StatusCode)
		}
		return nil, eris.Wrapf(err, "profile: read %s", ref.URL)
	}

	content := resp.Data.Content
	if IsLoginWall(content) {
		return nil, eris.Wrapf(ErrAccessBlocked, "profile: login wall at %s", ref.URL)
	}
	return r.parser.Parse(ctx, content, ref)
}

var loginWallMarkers = []string{
	"authwall",
	"login_required",
	"please log in",
	"sign in to view",
	"sign up to view",
	"join linkedin",
	"join now to see",
}

// IsLoginWall reports whether fetched content is a login wall rather than a
// profile.
func IsLoginWall(content string) bool {
	if len(strings.TrimSpace(content)) < 100 {
		return true
	}
	lower := strings.ToLower(content)
	for _, m := range loginWallMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
