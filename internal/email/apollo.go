package email

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/apollo"
)

// ApolloFinder uses Apollo People Enrichment.
type ApolloFinder struct {
	client apollo.Client
}

// NewApolloFinder creates an ApolloFinder.
func NewApolloFinder(client apollo.Client) *ApolloFinder {
	return &ApolloFinder{client: client}
}

func (a *ApolloFinder) Name() string { return "apollo" }

func (a *ApolloFinder) Find(ctx context.Context, id model.Identity, domain string) (string, error) {
	first, last := SplitName(id.FullName)
	if first == "" {
		return "", nil
	}
	resp, err := a.client.Match(ctx, apollo.MatchRequest{
		FirstName:            first,
		LastName:             last,
		OrganizationDomain:   domain,
		Title:                id.Title,
		RevealPersonalEmails: true,
	})
	if err != nil {
		return "", eris.Wrap(err, "email: apollo match")
	}
	return resp.BestEmail(), nil
}

// SplitName splits a full name into ASCII-folded first and last names. Middle
// names are dropped and a single token is used for both.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(foldDiacritics(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
