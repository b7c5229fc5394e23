// Package query filters, paginates and aggregates the cached directory.
package query

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reso-directory/internal/model"
)

// DefaultPerPage is the page size used when none (or an invalid one) is given.
const DefaultPerPage = 25

// ErrNoData is returned by Stats when there are no records to aggregate.
var ErrNoData = eris.New("no data available")

// Loader returns the current snapshot, loading it first if it has never been
// fetched. *snapshot.Store satisfies it.
type Loader interface {
	EnsureLoaded(ctx context.Context) *model.Snapshot
}

// PageRequest selects one page of a result. Page is 1-based.
type PageRequest struct {
	Page    int
	PerPage int
}

// SearchResult is one page of matching organizations plus paging metadata.
type SearchResult struct {
	Organizations []model.Organization `json:"organizations" yaml:"organizations"`
	Count         int                  `json:"count" yaml:"count"`
	TotalCount    int                  `json:"total_count" yaml:"total_count"`
	Page          int                  `json:"page" yaml:"page"`
	PerPage       int                  `json:"per_page" yaml:"per_page"`
	TotalPages    int                  `json:"total_pages" yaml:"total_pages"`
	HasNext       bool                 `json:"has_next" yaml:"has_next"`
	HasPrev       bool                 `json:"has_prev" yaml:"has_prev"`
	LastUpdated   *time.Time           `json:"last_updated" yaml:"last_updated"`
	SnapshotID    string               `json:"-" yaml:"-"`
}

// Stats holds occurrence counts per category over the whole directory.
type Stats struct {
	TotalOrganizations int            `json:"total_organizations" yaml:"total_organizations"`
	Types              map[string]int `json:"types" yaml:"types"`
	States             map[string]int `json:"states" yaml:"states"`
	Countries          map[string]int `json:"countries" yaml:"countries"`
}

// Engine answers search and statistics queries over the snapshot provided by
// its Loader. It never modifies the snapshot.
type Engine struct {
	loader Loader
}

// New creates an Engine reading from loader.
func New(loader Loader) *Engine {
	return &Engine{loader: loader}
}

// Matching returns every record that passes f, in snapshot order, together
// with the snapshot it was read from.
func (e *Engine) Matching(ctx context.Context, f Filter) ([]model.Organization, *model.Snapshot) {
	snap := e.loader.EnsureLoaded(ctx)
	m := newMatcher(f)

	out := make([]model.Organization, 0, len(snap.Organizations))
	for _, org := range snap.Organizations {
		if m.match(org) {
			out = append(out, org)
		}
	}
	return out, snap
}

// Search filters the snapshot with f and returns the requested page.
func (e *Engine) Search(ctx context.Context, f Filter, p PageRequest) SearchResult {
	matches, snap := e.Matching(ctx, f)
	res := Paginate(matches, p)
	res.LastUpdated = snap.FetchedAt
	res.SnapshotID = snap.ID
	return res
}

// Paginate slices matches to the page p describes. Pages past the end are
// empty, not an error. Page < 1 is treated as 1 and PerPage < 1 as
// DefaultPerPage.
func Paginate(matches []model.Organization, p PageRequest) SearchResult {
	page, perPage := p.Page, p.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total := len(matches)
	totalPages := (total + perPage - 1) / perPage

	start, end := total, total
	if page <= totalPages {
		start = (page - 1) * perPage
		end = min(start+perPage, total)
	}

	return SearchResult{
		Organizations: matches[start:end:end],
		Count:         end - start,
		TotalCount:    total,
		Page:          page,
		PerPage:       perPage,
		TotalPages:    totalPages,
		HasNext:       page < totalPages,
		HasPrev:       page > 1,
	}
}

// Stats counts records per type, state/province and country across the full
// snapshot. Absent or empty values are counted under model.UnknownCategory.
// It returns ErrNoData when the snapshot is empty after a load attempt.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	snap := e.loader.EnsureLoaded(ctx)
	if snap.Len() == 0 {
		return Stats{}, ErrNoData
	}
	return Aggregate(snap.Organizations), nil
}

// Aggregate computes Stats over orgs.
func Aggregate(orgs []model.Organization) Stats {
	st := Stats{
		TotalOrganizations: len(orgs),
		Types:              make(map[string]int),
		States:             make(map[string]int),
		Countries:          make(map[string]int),
	}
	for _, org := range orgs {
		st.Types[org.Category(model.FieldType)]++
		st.States[org.Category(model.FieldStateOrProvince)]++
		st.Countries[org.Category(model.FieldCountry)]++
	}
	return st
}
