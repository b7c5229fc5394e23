// Package api serves the directory search and statistics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/model"
	"github.com/sells-group/reso-directory/internal/query"
	"github.com/sells-group/reso-directory/internal/store"
)

// SnapshotIDHeader carries the ID of the snapshot a response was built from.
const SnapshotIDHeader = "X-Snapshot-ID"

// Searcher runs queries over the cached directory. *query.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, f query.Filter, p query.PageRequest) query.SearchResult
	Stats(ctx context.Context) (query.Stats, error)
}

// Refresher replaces the cached directory on request. *snapshot.Store
// satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) bool
	Current() *model.Snapshot
}

// HistoryLister lists recorded refresh attempts. store.Store satisfies it.
type HistoryLister interface {
	ListAttempts(ctx context.Context, filter store.AttemptFilter) ([]model.RefreshAttempt, error)
}

// Options tunes request parsing.
type Options struct {
	DefaultPerPage int
	MaxPerPage     int
	CORSOrigins    []string
}

// Handler owns the directory API handlers.
type Handler struct {
	Search    Searcher
	Refresher Refresher
	History   HistoryLister // nil when history is disabled
	Log       *zap.Logger
	opts      Options
}

// NewHandler creates a Handler. history may be nil.
func NewHandler(search Searcher, refresher Refresher, history HistoryLister, opts Options, logger *zap.Logger) *Handler {
	if opts.DefaultPerPage <= 0 {
		opts.DefaultPerPage = query.DefaultPerPage
	}
	if opts.MaxPerPage < opts.DefaultPerPage {
		opts.MaxPerPage = opts.DefaultPerPage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Search:    search,
		Refresher: refresher,
		History:   history,
		Log:       logger,
		opts:      opts,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status         string `json:"status"`
	SnapshotLoaded bool   `json:"snapshot_loaded"`
}

type refreshResponse struct {
	Refreshed          bool       `json:"refreshed"`
	TotalOrganizations int        `json:"total_organizations"`
	LastUpdated        *time.Time `json:"last_updated"`
	Error              string     `json:"error,omitempty"`
}

// ServeHealth handles GET /health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, healthResponse{
		Status:         "ok",
		SnapshotLoaded: h.Refresher.Current().Loaded(),
	})
}

// ServeOrganizations handles GET /api/organizations.
func (h *Handler) ServeOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filter{
		Query:   strings.TrimSpace(q.Get("query")),
		Type:    q.Get("type"),
		State:   q.Get("state"),
		Country: q.Get("country"),
	}
	p := query.PageRequest{
		Page:    positiveInt(q.Get("page"), 1),
		PerPage: min(positiveInt(q.Get("per_page"), h.opts.DefaultPerPage), h.opts.MaxPerPage),
	}

	res := h.Search.Search(r.Context(), f, p)
	setSnapshotID(w, res.SnapshotID)
	jsonResp(w, http.StatusOK, res)
}

// ServeStats handles GET /api/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Search.Stats(r.Context())
	if errors.Is(err, query.ErrNoData) {
		jsonErr(w, http.StatusServiceUnavailable, "No data available")
		return
	}
	if err != nil {
		h.Log.Error("compute stats", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	setSnapshotID(w, h.Refresher.Current().ID)
	jsonResp(w, http.StatusOK, st)
}

// ServeRefresh handles POST /api/refresh.
func (h *Handler) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	ok := h.Refresher.Refresh(r.Context())
	snap := h.Refresher.Current()

	resp := refreshResponse{
		Refreshed:          ok,
		TotalOrganizations: snap.Len(),
		LastUpdated:        snap.FetchedAt,
	}
	setSnapshotID(w, snap.ID)
	if !ok {
		resp.Error = "refresh failed; serving previous data"
		jsonResp(w, http.StatusBadGateway, resp)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// ServeRefreshes handles GET /api/refreshes.
func (h *Handler) ServeRefreshes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AttemptFilter{
		Limit:      positiveInt(q.Get("limit"), store.DefaultLimit),
		FailedOnly: q.Get("failed") == "true",
	}

	attempts, err := h.History.ListAttempts(r.Context(), filter)
	if err != nil {
		h.Log.Error("list refresh attempts", zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResp(w, http.StatusOK, attempts)
}

// positiveInt parses s, returning def when s is empty, malformed or below 1.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func setSnapshotID(w http.ResponseWriter, id string) {
	if id != "" {
		w.Header().Set(SnapshotIDHeader, id)
	}
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
