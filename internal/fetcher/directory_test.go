package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBody(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDirectory(url string) *DirectoryFetcher {
	return NewDirectoryFetcher(NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second, RatePerSec: 1000}), url)
}

func TestFetchOrganizations(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{
		"Organizations": [
			{"OrganizationName": "Bright MLS", "OrganizationType": "MLS", "OrganizationStateOrProvince": "MD", "OrganizationCountry": "US", "OrganizationUniqueId": "M00000001"},
			{"OrganizationName": "NAR", "OrganizationType": "Association", "OrganizationCountry": "US"}
		],
		"Total": 2
	}`)

	orgs, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 2)

	name, ok := orgs[0].Name()
	assert.True(t, ok)
	assert.Equal(t, "Bright MLS", name)
	assert.Equal(t, "M00000001", orgs[0]["OrganizationUniqueId"])

	_, ok = orgs[1].StateOrProvince()
	assert.False(t, ok)
}

func TestFetchOrganizations_MissingKeyIsEmpty(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"Total": 0}`)

	orgs, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orgs)
	assert.Empty(t, orgs)
}

func TestFetchOrganizations_NullListIsEmpty(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"Organizations": null}`)

	orgs, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestFetchOrganizations_SkipsNullEntries(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"Organizations": [null, {"OrganizationName": "A"}]}`)

	orgs, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "A", orgs[0]["OrganizationName"])
}

func TestFetchOrganizations_ParseErrors(t *testing.T) {
	bodies := map[string]string{
		"not json":        `<html>maintenance</html>`,
		"array body":      `[{"OrganizationName": "A"}]`,
		"null body":       `null`,
		"wrong list type": `{"Organizations": "many"}`,
		"scalar entries":  `{"Organizations": [1, 2, 3]}`,
		"truncated":       `{"Organizations": [{"OrganizationName": "A"`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, body)

			orgs, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
			require.Error(t, err)
			assert.Nil(t, orgs)
			assert.True(t, IsParseError(err), "got %T: %v", err, err)
			assert.False(t, IsFetchError(err))
		})
	}
}

func TestFetchOrganizations_StatusError(t *testing.T) {
	srv := serveBody(t, http.StatusInternalServerError, `{"Organizations": []}`)

	_, err := newDirectory(srv.URL).FetchOrganizations(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.False(t, IsParseError(err))
}

type stubFetcher struct {
	body string
	err  error
}

func (s stubFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestFetchOrganizations_WrapsForeignErrors(t *testing.T) {
	d := NewDirectoryFetcher(stubFetcher{err: errors.New("boom")}, "https://example.test/orgs")

	_, err := d.FetchOrganizations(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "https://example.test/orgs", fe.URL)
	assert.Equal(t, "https://example.test/orgs", d.URL())
}

// scriptedFetcher returns bodies[i] on call i, repeating the last one.
type scriptedFetcher struct {
	bodies []string
	err    error
	calls  int
}

func (s *scriptedFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	body := s.bodies[min(s.calls, len(s.bodies))-1]
	return io.NopCloser(strings.NewReader(body)), nil
}

func newRetryingDirectory(f Fetcher) *DirectoryFetcher {
	return NewDirectoryFetcher(f, "https://example.test/orgs", WithAttempts(3), WithBackoff(time.Millisecond))
}

func TestFetchOrganizations_RetriesTruncatedBody(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{
		`{"Organizations": [{"OrganizationName": "Bri`,
		`{"Organizations": [{"OrganizationName": "Bright MLS"}]}`,
	}}

	orgs, err := newRetryingDirectory(f).FetchOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, 2, f.calls)
}

func TestFetchOrganizations_TruncatedBodyExhaustsAttempts(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{`{"Organizations": [`}}

	_, err := newRetryingDirectory(f).FetchOrganizations(context.Background())
	require.Error(t, err)
	assert.True(t, IsParseError(err))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, 3, f.calls)
}

func TestFetchOrganizations_MalformedPayloadNotRetried(t *testing.T) {
	for _, body := range []string{`[1, 2]`, `null`, `{"Organizations": "nope"}`} {
		f := &scriptedFetcher{bodies: []string{body}}

		_, err := newRetryingDirectory(f).FetchOrganizations(context.Background())
		require.Error(t, err, body)

		var pe *ParseError
		assert.True(t, errors.As(err, &pe), body)
		assert.Equal(t, 1, f.calls, body)
	}
}

func TestFetchOrganizations_DownloadFailureNotRetriedAgain(t *testing.T) {
	f := &scriptedFetcher{err: &FetchError{URL: "https://example.test/orgs", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}}

	_, err := newRetryingDirectory(f).FetchOrganizations(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, 1, f.calls)
}
