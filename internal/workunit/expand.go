// Package workunit turns the domain and role lists of a search request into
// the ordered units a batch processes.
package workunit

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// ErrInvalidInput is returned when a request has no usable domains or roles.
var ErrInvalidInput = eris.New("workunit: invalid input")

// Expand returns the cross product of domains and roles, domain-major, with
// 1-based indices. Entries are trimmed and blank entries dropped; duplicates
// are kept.
func Expand(domains, roles []string) ([]model.WorkUnit, error) {
	ds := clean(domains)
	if len(ds) == 0 {
		return nil, eris.Wrap(ErrInvalidInput, "no domains provided")
	}
	rs := clean(roles)
	if len(rs) == 0 {
		return nil, eris.Wrap(ErrInvalidInput, "no roles provided")
	}

	units := make([]model.WorkUnit, 0, len(ds)*len(rs))
	for _, d := range ds {
		for _, r := range rs {
			units = append(units, model.WorkUnit{Domain: d, Role: r, Index: len(units) + 1})
		}
	}
	return units, nil
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)+$`)

// NormalizeDomain lowercases d and strips a scheme, a leading "www." and any
// path, query or port.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

// ValidDomain reports whether d is a syntactically valid hostname with at
// least two labels.
func ValidDomain(d string) bool {
	return len(d) <= 253 && domainRe.MatchString(d)
}
