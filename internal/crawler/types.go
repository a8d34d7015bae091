package crawler

import (
	"context"

	"sjsage522/pricewatch/helpers"
)

// Fetcher retrieves a single page. Implementations return *errors.ScanError
// values for timeouts, refused connections and bad status codes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*helpers.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, rawURL string) (*helpers.Response, error)

// Fetch calls f(ctx, rawURL)
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*helpers.Response, error) {
	return f(ctx, rawURL)
}
