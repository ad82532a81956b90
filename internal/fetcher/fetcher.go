// Package fetcher provides the rate-limited, retrying HTTP client shared by
// the source adapters.
package fetcher

import (
	"context"
	"net/url"
)

// Fetcher fetches JSON documents from a system of record.
type Fetcher interface {
	// GetJSON performs a GET against path (relative to the client base URL)
	// with the given query parameters and decodes the response body into out.
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}
