package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/model"
	"github.com/sells-group/reso-directory/internal/resilience"
)

// OrganizationsKey is the top-level key holding the record list.
const OrganizationsKey = "Organizations"

// DirectoryFetcher retrieves the organization directory from a fixed
// endpoint.
type DirectoryFetcher struct {
	fetcher  Fetcher
	url      string
	attempts int
	backoff  time.Duration
}

// DirectoryOption configures a DirectoryFetcher.
type DirectoryOption func(*DirectoryFetcher)

// WithAttempts sets how many times a body cut off mid-transfer is fetched
// again. Values below 1 mean a single attempt.
func WithAttempts(n int) DirectoryOption {
	return func(d *DirectoryFetcher) { d.attempts = n }
}

// WithBackoff sets the initial delay between attempts.
func WithBackoff(delay time.Duration) DirectoryOption {
	return func(d *DirectoryFetcher) { d.backoff = delay }
}

// NewDirectoryFetcher creates a DirectoryFetcher that reads from url.
func NewDirectoryFetcher(f Fetcher, url string, opts ...DirectoryOption) *DirectoryFetcher {
	d := &DirectoryFetcher{fetcher: f, url: url, attempts: 1, backoff: time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// URL returns the endpoint the fetcher reads.
func (d *DirectoryFetcher) URL() string { return d.url }

// FetchOrganizations downloads the directory and returns its records in
// source order. A body without an Organizations key yields an empty list.
//
// Download failures were already retried by the Fetcher and malformed
// payloads will not improve, so only truncated bodies are fetched again.
func (d *DirectoryFetcher) FetchOrganizations(ctx context.Context) ([]model.Organization, error) {
	return resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    d.attempts,
		InitialBackoff: d.backoff,
		JitterFraction: 0.25,
		OnRetry:        resilience.RetryLogger("directory", "decode"),
	}, d.fetchOnce)
}

func (d *DirectoryFetcher) fetchOnce(ctx context.Context) ([]model.Organization, error) {
	body, err := d.fetcher.Download(ctx, d.url)
	if err != nil {
		if IsFetchError(err) {
			return nil, resilience.Permanent(err)
		}
		return nil, resilience.Permanent(&FetchError{URL: d.url, Err: err})
	}
	defer body.Close() //nolint:errcheck

	top, err := DecodeJSONObject[map[string]json.RawMessage](body)
	if err != nil {
		pe := &ParseError{URL: d.url, Err: err}
		if resilience.IsTransient(err) {
			return nil, pe
		}
		return nil, resilience.Permanent(pe)
	}
	if *top == nil {
		return nil, resilience.Permanent(&ParseError{URL: d.url, Err: eris.New("body is not a JSON object")})
	}

	raw, ok := (*top)[OrganizationsKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		zap.L().Warn("directory payload has no organizations",
			zap.String("url", d.url),
			zap.String("key", OrganizationsKey),
		)
		return []model.Organization{}, nil
	}

	var decoded []model.Organization
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, resilience.Permanent(&ParseError{URL: d.url, Err: eris.Wrapf(err, "json: decode %s", OrganizationsKey)})
	}

	orgs := make([]model.Organization, 0, len(decoded))
	for _, o := range decoded {
		if o == nil {
			continue
		}
		orgs = append(orgs, o)
	}
	if dropped := len(decoded) - len(orgs); dropped > 0 {
		zap.L().Warn("skipped null directory entries", zap.Int("count", dropped))
	}

	return orgs, nil
}
