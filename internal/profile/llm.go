package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/anthropic"
)

const extractSystemPrompt = `You extract structured data from professional profile pages.
Return only a JSON object with these string fields:
- name: the person's full name
- title: their current job title
- employer: their current company
- location: where they are based
Use an empty string for anything the page does not state.`

// maxPageChars bounds the markdown sent to the model.
const maxPageChars = 12000

// LLMParser extracts profile details with a small Claude model.
type LLMParser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMParser creates an LLMParser using model.
func NewLLMParser(client anthropic.Client, model string, maxTokens int64) *LLMParser {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMParser{client: client, model: model, maxTokens: maxTokens}
}

func (l *LLMParser) Parse(ctx context.Context, markdown string, ref model.ProfileRef) (*model.Profile, error) {
	markdown = truncateUTF8(markdown, maxPageChars)
	temp := 0.0
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    []anthropic.SystemBlock{{Text: extractSystemPrompt, Cached: true}},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Profile URL: %s\n\n%s", ref.URL, markdown)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "profile: llm extraction")
	}
	resp.Usage.Log(l.model, "profile_extract")

	var p model.Profile
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &p); err != nil {
		return nil, eris.Wrapf(ErrParse, "profile: llm returned invalid json: %v", err)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Title = strings.TrimSpace(p.Title)
	if p.Name == "" {
		return nil, nil
	}
	return &p, nil
}

// cleanJSON pulls a JSON object out of text that may be wrapped in code
// fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "```json"), "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
