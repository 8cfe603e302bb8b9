// Package apollo provides a client for the Apollo.io People Enrichment API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apollo.io/api/v1"

// Client matches a person against Apollo's database.
type Client interface {
	Match(ctx context.Context, req MatchRequest) (*MatchResponse, error)
}

// MatchRequest is the People Enrichment payload.
type MatchRequest struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	OrganizationDomain   string `json:"organization_domain"`
	Title                string `json:"title,omitempty"`
	RevealPersonalEmails bool   `json:"reveal_personal_emails"`
	RevealPhoneNumber    bool   `json:"reveal_phone_number"`
}

// MatchResponse holds the fields an email can appear in. Apollo has moved
// the email between the top level and several nested records over time.
type MatchResponse struct {
	Email   string  `json:"email"`
	Person  *Person `json:"person"`
	Contact *Person `json:"contact"`
	Data    *Person `json:"data"`
}

// Person is a matched person or contact record.
type Person struct {
	Name      string       `json:"name"`
	Title     string       `json:"title"`
	Email     string       `json:"email"`
	WorkEmail string       `json:"work_email"`
	Emails    []EmailEntry `json:"emails"`
}

// EmailEntry decodes either a bare string or an object with an "email" key.
type EmailEntry string

// UnmarshalJSON implements json.Unmarshaler.
func (e *EmailEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = EmailEntry(s)
		return nil
	}
	var obj struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = EmailEntry(obj.Email)
	return nil
}

// BestEmail returns the first email found, checking the top level, then the
// first present nested record's email, work_email and emails[0].
func (r *MatchResponse) BestEmail() string {
	if r.Email != "" {
		return r.Email
	}
	var p *Person
	switch {
	case r.Person != nil:
		p = r.Person
	case r.Contact != nil:
		p = r.Contact
	default:
		p = r.Data
	}
	if p == nil {
		return ""
	}
	if p.Email != "" {
		return p.Email
	}
	if p.WorkEmail != "" {
		return p.WorkEmail
	}
	if len(p.Emails) > 0 {
		return string(p.Emails[0])
	}
	return ""
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("apollo: unexpected status %d: %s", e.StatusCode, body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Match(ctx context.Context, mr MatchRequest) (*MatchResponse, error) {
	body, err := json.Marshal(mr)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/people/match", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result MatchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal response")
	}
	return &result, nil
}
