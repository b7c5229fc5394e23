// Package fetcher downloads the remote organization directory and decodes it
// into records.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Failures are
	// reported as *FetchError.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
