package profile

import (
	"context"
	"strings"

	"github.com/sells-group/contact-finder/internal/model"
)

// HeuristicParser reads the profile layout directly: the first heading is
// the name, the next line the headline, and a short "City, Region" line the
// location.
type HeuristicParser struct{}

func (HeuristicParser) Parse(_ context.Context, markdown string, _ model.ProfileRef) (*model.Profile, error) {
	var p model.Profile
	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "![") || strings.HasPrefix(line, "[") {
			continue
		}
		if p.Name == "" {
			if strings.HasPrefix(line, "#") {
				p.Name = strings.TrimSpace(strings.TrimLeft(line, "#"))
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			break
		}
		switch {
		case p.Title == "":
			p.Title = line
			if _, employer, ok := strings.Cut(line, " at "); ok {
				p.Employer = strings.TrimSpace(employer)
			}
		case p.Location == "" && looksLikeLocation(line):
			p.Location = line
		case p.Employer == "":
			p.Employer = line
		}
	}
	if p.Name == "" {
		return nil, nil
	}
	return &p, nil
}

func looksLikeLocation(line string) bool {
	return len(line) <= 60 && strings.Contains(line, ", ") && !strings.ContainsAny(line, "0123456789@")
}
