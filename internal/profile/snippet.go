package profile

import (
	"context"
	"strings"

	"github.com/sells-group/contact-finder/internal/model"
)

var titleKeywords = []string{"ceo", "founder", "manager", "head", "director", "officer", "executive"}

// SnippetExtractor derives name and title from the search result itself.
// It needs no network and serves as the fallback when the page is blocked.
type SnippetExtractor struct{}

func (SnippetExtractor) Name() string { return "snippet" }

func (SnippetExtractor) Extract(_ context.Context, ref model.ProfileRef) (*model.Profile, error) {
	name := NameFromTitle(ref.Title)
	if name == "" {
		return nil, nil
	}
	return &model.Profile{
		Name:     name,
		Title:    TitleFromResult(ref.Title, ref.Snippet),
		Employer: employerFromTitle(ref.Title),
	}, nil
}

// NameFromTitle takes the name from a result title such as
// "Jane Doe - CFO - Acme | LinkedIn".
func NameFromTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" - ", " | ", "|", " – "} {
		if before, _, ok := strings.Cut(title, sep); ok {
			return strings.TrimSpace(before)
		}
	}
	if strings.EqualFold(title, "linkedin") {
		return ""
	}
	return title
}

// TitleFromResult takes the job title from the second " - " segment of the
// result title, else from the first snippet sentence naming a senior role.
// It returns "" when neither has one.
func TitleFromResult(title, snippet string) string {
	parts := strings.Split(stripSiteSuffix(title), " - ")
	if len(parts) > 1 {
		if t := strings.TrimSpace(parts[1]); t != "" {
			return t
		}
	}
	for _, sentence := range strings.Split(snippet, ".") {
		lower := strings.ToLower(sentence)
		for _, kw := range titleKeywords {
			if strings.Contains(lower, kw) {
				return strings.TrimSpace(sentence)
			}
		}
	}
	return ""
}

func employerFromTitle(title string) string {
	parts := strings.Split(stripSiteSuffix(title), " - ")
	if len(parts) > 2 {
		return strings.TrimSpace(parts[2])
	}
	return ""
}

func stripSiteSuffix(title string) string {
	if i := strings.LastIndex(title, "|"); i >= 0 {
		return title[:i]
	}
	return title
}
