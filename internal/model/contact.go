package model

// Sentinel strings written in place of a value when a field could not be
// resolved. Downstream CSV and UI consumers match on them exactly.
const (
	SentinelNotFound = "Not Found"
	SentinelError    = "Error"
)

// MatchedRoleInvalidDomain replaces the matched role when a domain fails
// format validation and no lookup was attempted.
const MatchedRoleInvalidDomain = "Invalid Domain"

// FieldState tags how a contact field was resolved.
type FieldState string

const (
	FieldFound    FieldState = "found"
	FieldNotFound FieldState = "not_found"
	FieldError    FieldState = "error"
)

// Field is a contact attribute that is either a resolved value or a
// not-found / error marker.
type Field struct {
	State FieldState `json:"state"`
	Value string     `json:"value,omitempty"`
}

// Found returns a resolved field. An empty value is treated as not found.
func Found(v string) Field {
	if v == "" {
		return NotFound()
	}
	return Field{State: FieldFound, Value: v}
}

// NotFound returns a field marked as not found.
func NotFound() Field { return Field{State: FieldNotFound} }

// Errored returns a field marked as failed.
func Errored() Field { return Field{State: FieldError} }

// OK reports whether the field holds a resolved value.
func (f Field) OK() bool { return f.State == FieldFound }

// String renders the field for export, substituting sentinels.
func (f Field) String() string {
	switch f.State {
	case FieldFound:
		return f.Value
	case FieldError:
		return SentinelError
	default:
		return SentinelNotFound
	}
}

// Contact is the resolved outcome of one work unit.
type Contact struct {
	Domain      string
	MatchedRole string
	Name        Field
	Title       Field
	Email       Field
	LinkedInURL Field
}

// DegradedContact builds a contact whose person fields all carry the same
// marker. linkedInURL is kept when it was already known.
func DegradedContact(domain, role string, marker Field, linkedInURL Field) Contact {
	return Contact{
		Domain:      domain,
		MatchedRole: role,
		Name:        marker,
		Title:       marker,
		Email:       marker,
		LinkedInURL: linkedInURL,
	}
}

// Row converts the contact to its wire/export form.
func (c Contact) Row() ContactRow {
	return ContactRow{
		Domain:      c.Domain,
		Name:        c.Name.String(),
		Title:       c.Title.String(),
		Email:       c.Email.String(),
		LinkedInURL: c.LinkedInURL.String(),
		MatchedRole: c.MatchedRole,
	}
}

// ContactRow is the flat record sent to clients and written to exports.
// Field order matches the export column order.
type ContactRow struct {
	Domain      string `json:"domain" csv:"domain"`
	Name        string `json:"name" csv:"name"`
	Title       string `json:"title" csv:"title"`
	Email       string `json:"email" csv:"email"`
	LinkedInURL string `json:"linkedin_url" csv:"linkedin_url"`
	MatchedRole string `json:"matched_role" csv:"matched_role"`
}

// ExportColumns is the fixed column order of exported tables.
var ExportColumns = []string{"domain", "name", "title", "email", "linkedin_url", "matched_role"}

// Values returns the row's cells in ExportColumns order.
func (r ContactRow) Values() []string {
	return []string{r.Domain, r.Name, r.Title, r.Email, r.LinkedInURL, r.MatchedRole}
}

// ProfileRef points at a candidate professional profile found by search.
type ProfileRef struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Profile holds the identity and employment details extracted from a
// profile page.
type Profile struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Employer string `json:"employer,omitempty"`
	Location string `json:"location,omitempty"`
}

// Identity is what the email resolver needs to look a person up.
type Identity struct {
	FullName string
	Title    string
}
