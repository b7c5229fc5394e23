// Package snapshot holds the in-memory copy of the organization directory and
// refreshes it from the remote source on demand.
//
// The store never refreshes on a timer and never retries on its own: the
// first read of an empty store triggers one load, and after that only an
// explicit Refresh replaces the data.
package snapshot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/reso-directory/internal/fetcher"
	"github.com/sells-group/reso-directory/internal/model"
)

// Source produces the current list of directory records.
type Source interface {
	FetchOrganizations(ctx context.Context) ([]model.Organization, error)
}

// Recorder receives one entry per refresh attempt.
type Recorder interface {
	Record(ctx context.Context, attempt model.RefreshAttempt) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRecorder reports each refresh attempt to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithIDFunc overrides snapshot and attempt ID generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Store owns the current Snapshot. Readers load the published pointer without
// locking; a refresh builds a new Snapshot and swaps it in whole.
type Store struct {
	src      Source
	recorder Recorder
	now      func() time.Time
	newID    func() string

	current atomic.Pointer[model.Snapshot]
	flight  singleflight.Group
}

// New creates a Store with an empty, never-fetched snapshot.
func New(src Source, opts ...Option) *Store {
	s := &Store{
		src:   src,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&model.Snapshot{Organizations: []model.Organization{}})
	return s
}

// Current returns the published snapshot without triggering a load.
func (s *Store) Current() *model.Snapshot {
	return s.current.Load()
}

// EnsureLoaded returns the current snapshot, attempting a single refresh
// first if no fetch has ever succeeded. The result may still be empty when
// that refresh fails.
func (s *Store) EnsureLoaded(ctx context.Context) *model.Snapshot {
	if snap := s.Current(); snap.Loaded() {
		return snap
	}
	s.Refresh(ctx)
	return s.Current()
}

// Refresh fetches the directory and publishes it as the new snapshot. It
// returns false, leaving the current snapshot untouched, when the fetch
// fails. Concurrent callers share one in-flight fetch and its outcome.
//
// The shared fetch is detached from the caller's cancellation: a caller whose
// ctx ends stops waiting and gets false, while the fetch carries on for the
// others.
func (s *Store) Refresh(ctx context.Context) bool {
	ch := s.flight.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		zap.L().Warn("stopped waiting for directory refresh", zap.Error(ctx.Err()))
		return false
	}
}

func (s *Store) refresh(ctx context.Context) bool {
	attempt := model.RefreshAttempt{ID: s.newID(), StartedAt: s.now()}

	orgs, err := s.src.FetchOrganizations(ctx)
	attempt.FinishedAt = s.now()
	if err != nil {
		attempt.Error = err.Error()
		zap.L().Error("directory refresh failed, keeping current snapshot",
			zap.String("kind", errorKind(err)),
			zap.Bool("loaded", s.Current().Loaded()),
			zap.Duration("elapsed", attempt.Duration()),
			zap.Error(err),
		)
		s.record(ctx, attempt)
		return false
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}

	fetchedAt := attempt.FinishedAt
	snap := &model.Snapshot{
		ID:            s.newID(),
		Organizations: orgs,
		FetchedAt:     &fetchedAt,
	}
	s.current.Store(snap)

	attempt.OK = true
	attempt.Count = len(orgs)
	attempt.SnapshotID = snap.ID
	zap.L().Info("directory refreshed",
		zap.String("snapshot_id", snap.ID),
		zap.Int("organizations", len(orgs)),
		zap.Duration("elapsed", attempt.Duration()),
	)
	s.record(ctx, attempt)
	return true
}

func (s *Store) record(ctx context.Context, attempt model.RefreshAttempt) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		zap.L().Warn("record refresh attempt", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}

func errorKind(err error) string {
	switch {
	case fetcher.IsFetchError(err):
		return "fetch"
	case fetcher.IsParseError(err):
		return "parse"
	default:
		return "unknown"
	}
}
