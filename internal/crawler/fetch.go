package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/logger"
	scanerr "sjsage522/pricewatch/pkg/errors"
	"sjsage522/pricewatch/services/cache"
)

// DefaultBlockTime is how long a host stays blocked after it rate limits us
const DefaultBlockTime = 60 * time.Second

// HTTPFetcher fetches pages over HTTP and blocks hosts that answer with
// 429 for BlockTime, using the cache service as the shared block list.
type HTTPFetcher struct {
	Client    *http.Client
	CacheSvc  cache.CacheService
	BlockTime time.Duration

	log *logger.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client uses helpers.DefaultClient
// and a nil cache disables host blocking.
func NewHTTPFetcher(client *http.Client, cacheSvc cache.CacheService, blockTime time.Duration) *HTTPFetcher {
	if blockTime <= 0 {
		blockTime = DefaultBlockTime
	}
	return &HTTPFetcher{
		Client:    client,
		CacheSvc:  cacheSvc,
		BlockTime: blockTime,
		log:       logger.ForFetcher(),
	}
}

// BlockKey returns the cache key marking a host as rate limited
func BlockKey(host string) string {
	return "pricewatch:blocked:" + strings.ToLower(host)
}

// Fetch fetches rawURL unless its host is currently blocked
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*helpers.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, scanerr.NewConnection(rawURL, fmt.Errorf("invalid url %q", rawURL))
	}
	key := BlockKey(u.Host)

	// Check if the host is rate limited
	if f.CacheSvc != nil {
		if _, err := f.CacheSvc.Get(key); err == nil {
			return nil, scanerr.NewRateLimit(rawURL, f.BlockTime)
		}
	}

	resp, err := helpers.FetchWithRandomHeaders(ctx, f.Client, rawURL)
	if err == nil {
		return resp, nil
	}

	var rateErr *helpers.RateLimitedError
	if errors.As(err, &rateErr) {
		block := f.blockDuration(rateErr.RetryAfter)
		if f.CacheSvc != nil {
			if setErr := f.CacheSvc.Set(key, []byte(strconv.Itoa(int(block/time.Second))), block); setErr != nil {
				f.log.Warn().Err(setErr).Str("host", u.Host).Msg("failed to store host block")
			}
		}
		f.log.Warn().Str("host", u.Host).Dur("block", block).Msg("host rate limited, blocking")
		return nil, scanerr.NewRateLimit(rawURL, block)
	}
	return nil, err
}

// blockDuration honours a Retry-After in seconds when it is longer than BlockTime
func (f *HTTPFetcher) blockDuration(retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
		if d := time.Duration(secs) * time.Second; d > f.BlockTime {
			return d
		}
	}
	return f.BlockTime
}
