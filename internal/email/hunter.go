package email

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/hunter"
)

// HunterFinder uses the Hunter email finder. Only addresses with a positive
// confidence score are accepted.
type HunterFinder struct {
	client hunter.Client
}

// NewHunterFinder creates a HunterFinder.
func NewHunterFinder(client hunter.Client) *HunterFinder {
	return &HunterFinder{client: client}
}

func (h *HunterFinder) Name() string { return "hunter" }

func (h *HunterFinder) Find(ctx context.Context, id model.Identity, domain string) (string, error) {
	name := strings.TrimSpace(id.FullName)
	if name == "" {
		return "", nil
	}
	res, err := h.client.FindEmail(ctx, domain, name)
	if err != nil {
		return "", eris.Wrap(err, "email: hunter find")
	}
	if res == nil || res.Score <= 0 {
		return "", nil
	}
	return res.Email, nil
}
