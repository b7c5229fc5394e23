package query

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/reso-directory/internal/model"
)

// Filter narrows a search. Empty fields place no constraint. Query is a
// case-insensitive substring of the organization name; the others must equal
// the record's value exactly.
type Filter struct {
	Query   string `json:"query,omitempty"`
	Type    string `json:"type,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// IsZero reports whether the filter places no constraint.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether org passes every constraint in f.
func (f Filter) Match(org model.Organization) bool {
	return newMatcher(f).match(org)
}

type matcher struct {
	f     Filter
	query string
	fold  cases.Caser // not safe for concurrent use; one per search
}

func newMatcher(f Filter) *matcher {
	m := &matcher{f: f, fold: cases.Fold()}
	if f.Query != "" {
		m.query = m.fold.String(f.Query)
	}
	return m
}

func (m *matcher) match(org model.Organization) bool {
	if m.query != "" {
		name, ok := org.Name()
		if !ok || !strings.Contains(m.fold.String(name), m.query) {
			return false
		}
	}
	return exact(org, model.FieldType, m.f.Type) &&
		exact(org, model.FieldStateOrProvince, m.f.State) &&
		exact(org, model.FieldCountry, m.f.Country)
}

// exact treats an absent field as never matching a non-empty want.
func exact(org model.Organization, key, want string) bool {
	if want == "" {
		return true
	}
	v, ok := org.Field(key)
	return ok && v == want
}
