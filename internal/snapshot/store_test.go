package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reso-directory/internal/fetcher"
	"github.com/sells-group/reso-directory/internal/model"
)

type fakeSource struct {
	mu    sync.Mutex
	orgs  []model.Organization
	err   error
	calls atomic.Int32

	entered chan struct{} // signalled on each call when non-nil
	release chan struct{} // call blocks until closed when non-nil
}

func (f *fakeSource) FetchOrganizations(ctx context.Context) ([]model.Organization, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orgs, f.err
}

func (f *fakeSource) set(orgs []model.Organization, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs, f.err = orgs, err
}

type memRecorder struct {
	mu       sync.Mutex
	attempts []model.RefreshAttempt
	err      error
}

func (m *memRecorder) Record(_ context.Context, a model.RefreshAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return m.err
}

func orgs(names ...string) []model.Organization {
	out := make([]model.Organization, 0, len(names))
	for _, n := range names {
		out = append(out, model.Organization{model.FieldName: n, model.FieldType: "MLS"})
	}
	return out
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func TestNew_StartsEmpty(t *testing.T) {
	st := New(&fakeSource{})

	snap := st.Current()
	require.NotNil(t, snap)
	assert.False(t, snap.Loaded())
	assert.Nil(t, snap.FetchedAt)
	assert.Equal(t, 0, snap.Len())
}

func TestEnsureLoaded_LoadsOnce(t *testing.T) {
	src := &fakeSource{orgs: orgs("A", "B")}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := New(src, WithClock(fixedClock(now)))

	snap := st.EnsureLoaded(context.Background())
	require.True(t, snap.Loaded())
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, now, *snap.FetchedAt)

	again := st.EnsureLoaded(context.Background())
	assert.Same(t, snap, again)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestEnsureLoaded_FailureReturnsEmpty(t *testing.T) {
	src := &fakeSource{err: &fetcher.FetchError{URL: "x", Err: errors.New("down")}}
	st := New(src)

	snap := st.EnsureLoaded(context.Background())
	assert.False(t, snap.Loaded())
	assert.Equal(t, 0, snap.Len())

	// Not loaded yet, so each read tries exactly once more.
	st.EnsureLoaded(context.Background())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestEnsureLoaded_DoesNotRefreshStaleSnapshot(t *testing.T) {
	src := &fakeSource{orgs: orgs("A")}
	st := New(src)

	st.EnsureLoaded(context.Background())
	src.set(orgs("A", "B", "C"), nil)

	snap := st.EnsureLoaded(context.Background())
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	src := &fakeSource{orgs: orgs("A")}
	st := New(src, WithIDFunc(sequentialIDs()))

	require.True(t, st.Refresh(context.Background()))
	first := st.Current()

	src.set(orgs("B", "C"), nil)
	require.True(t, st.Refresh(context.Background()))
	second := st.Current()

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, first.Len(), "published snapshot must not change")
	assert.Equal(t, 2, second.Len())
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{orgs: orgs("A", "B")}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := New(src, WithClock(func() time.Time { return clock }))

	require.True(t, st.Refresh(context.Background()))
	before := st.Current()
	beforeTime := *before.FetchedAt

	clock = clock.Add(time.Hour)
	src.set(nil, &fetcher.ParseError{URL: "x", Err: errors.New("bad json")})

	assert.False(t, st.Refresh(context.Background()))
	after := st.Current()
	assert.Same(t, before, after)
	assert.Equal(t, beforeTime, *after.FetchedAt)
	assert.Equal(t, 2, after.Len())
}

func TestRefresh_NilListBecomesEmptySnapshot(t *testing.T) {
	st := New(&fakeSource{})

	require.True(t, st.Refresh(context.Background()))
	snap := st.Current()
	assert.True(t, snap.Loaded())
	assert.NotNil(t, snap.Organizations)
	assert.Equal(t, 0, snap.Len())
}

func TestRefresh_RecordsAttempts(t *testing.T) {
	src := &fakeSource{orgs: orgs("A", "B", "C")}
	rec := &memRecorder{}
	st := New(src, WithRecorder(rec), WithIDFunc(sequentialIDs()))

	require.True(t, st.Refresh(context.Background()))
	src.set(nil, &fetcher.FetchError{URL: "x", StatusCode: 503, Err: errors.New("unavailable")})
	require.False(t, st.Refresh(context.Background()))

	require.Len(t, rec.attempts, 2)
	ok := rec.attempts[0]
	assert.True(t, ok.OK)
	assert.Equal(t, 3, ok.Count)
	assert.Equal(t, st.Current().ID, ok.SnapshotID)
	assert.Empty(t, ok.Error)

	failed := rec.attempts[1]
	assert.False(t, failed.OK)
	assert.Empty(t, failed.SnapshotID)
	assert.Contains(t, failed.Error, "status 503")
}

func TestRefresh_RecorderErrorIgnored(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	st := New(&fakeSource{orgs: orgs("A")}, WithRecorder(rec))

	assert.True(t, st.Refresh(context.Background()))
	assert.Equal(t, 1, st.Current().Len())
}

func TestRefresh_ConcurrentCallsShareOneFetch(t *testing.T) {
	src := &fakeSource{
		orgs:    orgs("A"),
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	st := New(src)

	var wg sync.WaitGroup
	results := make([]bool, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = st.Refresh(context.Background())
	}()
	<-src.entered

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = st.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
}

func TestRefresh_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	src := &fakeSource{
		orgs:    orgs("A", "B"),
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	st := New(src)

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan bool)
	go func() { doneA <- st.Refresh(ctxA) }()
	<-src.entered

	doneB := make(chan *model.Snapshot)
	go func() { doneB <- st.EnsureLoaded(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case ok := <-doneA:
		assert.False(t, ok, "cancelled caller should stop waiting")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared fetch")
	}

	close(src.release)
	select {
	case snap := <-doneB:
		assert.True(t, snap.Loaded())
		assert.Equal(t, 2, snap.Len())
	case <-time.After(time.Second):
		t.Fatal("second caller never got the shared result")
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 2, st.Current().Len())
}

func TestCurrent_DoesNotBlockDuringRefresh(t *testing.T) {
	src := &fakeSource{orgs: orgs("A")}
	st := New(src)
	require.True(t, st.Refresh(context.Background()))
	published := st.Current()

	src.entered = make(chan struct{}, 1)
	src.release = make(chan struct{})
	done := make(chan bool)
	go func() { done <- st.Refresh(context.Background()) }()
	<-src.entered

	read := make(chan *model.Snapshot)
	go func() { read <- st.EnsureLoaded(context.Background()) }()
	select {
	case snap := <-read:
		assert.Same(t, published, snap)
	case <-time.After(time.Second):
		t.Fatal("read blocked on in-flight refresh")
	}

	close(src.release)
	assert.True(t, <-done)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "fetch", errorKind(&fetcher.FetchError{Err: errors.New("x")}))
	assert.Equal(t, "parse", errorKind(&fetcher.ParseError{Err: errors.New("x")}))
	assert.Equal(t, "unknown", errorKind(errors.New("x")))
}
