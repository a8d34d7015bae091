// Package scanner runs scan passes: it discovers the categories of a shop,
// walks their listings with a pool of workers and reports products priced at
// or below a threshold that the seen ledger does not know yet.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/classifier"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/internal/ledger"
	"sjsage522/pricewatch/logger"
	scanerr "sjsage522/pricewatch/pkg/errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultRetryBackoff is the wait before retrying a transient fetch failure
const DefaultRetryBackoff = 500 * time.Millisecond

// Options configures a single pass
type Options struct {
	SeedURL  string
	MaxPrice decimal.Decimal
	// Workers is the number of concurrent category workers (at least 1)
	Workers int
	// RequestDelay is the minimum gap between two requests of one worker
	RequestDelay time.Duration
	// MaxProductsPerCategory caps product fetches per category; 0 is unlimited
	MaxProductsPerCategory int
	// MaxPagesPerCategory caps listing pages followed per category (at least 1)
	MaxPagesPerCategory int
	// SortQuery is merged into every category URL, e.g. "sort_by=price_asc"
	SortQuery    string
	RetryBackoff time.Duration
}

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.MaxPagesPerCategory < 1 {
		o.MaxPagesPerCategory = 1
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// Result summarizes one pass
type Result struct {
	ProductsChecked   int
	Matches           []Product
	CategoriesScanned int
	Duration          time.Duration
	Errors            []*scanerr.ScanError
}

// DurationMs returns the pass duration in milliseconds
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Scanner runs passes against one fetcher. It is the only writer of the
// ledger it is given.
type Scanner struct {
	fetcher    crawler.Fetcher
	classifier *classifier.Classifier
	ledger     *ledger.Ledger
	log        *logger.Logger
}

// New creates a scanner. A nil log uses logger.ForScanner().
func New(fetcher crawler.Fetcher, cls *classifier.Classifier, led *ledger.Ledger, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.ForScanner()
	}
	return &Scanner{
		fetcher:    fetcher,
		classifier: cls,
		ledger:     led,
		log:        log,
	}
}

// categoryJob is one category to walk; page is set when the listing was
// already fetched during discovery.
type categoryJob struct {
	url  *url.URL
	page *classifier.Page
}

// event is what workers hand to the collector
type event struct {
	checked   bool
	candidate *Product
	err       *scanerr.ScanError
	// categoryDone is set once per job; categoryOK reports whether its
	// first listing page could be fetched
	categoryDone bool
	categoryOK   bool
}

// visitedSet remembers product identifiers claimed during one pass
type visitedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (v *visitedSet) claim(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.ids[id]; ok {
		return false
	}
	v.ids[id] = struct{}{}
	return true
}

// RunPass performs one full pass. Fetch failures of single pages are
// recorded in Result.Errors; the returned error is a pass-fatal ScanError or
// the context error when the pass was cancelled. The result is never nil.
func (s *Scanner) RunPass(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.normalized()
	start := time.Now()
	result := &Result{}
	defer func() { result.Duration = time.Since(start) }()

	seed, err := parseSeed(opts.SeedURL)
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Discovering
	limiter := newLimiter(opts.RequestDelay)
	resp, fetchErr := s.fetch(ctx, limiter, seed.String(), opts.RetryBackoff)
	if fetchErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		result.Errors = append(result.Errors, fetchErr)
		return result, scanerr.NewPassFatal(scanerr.ReasonNoSeedReachable, seed.String(), "seed page unreachable", fetchErr)
	}
	seedPage := pageFrom(seed, resp)

	jobs := s.discover(seedPage, opts)
	s.log.Debug().Str("seed", seed.String()).Int("categories", len(jobs)).Msg("discovery finished")

	// Scanning
	jobCh := make(chan categoryJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	events := make(chan event, opts.Workers*4)
	visited := &visitedSet{ids: make(map[string]struct{})}

	// Aggregating
	var categoriesOK, categoriesFailed int
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for ev := range events {
			switch {
			case ev.err != nil:
				result.Errors = append(result.Errors, ev.err)
			case ev.checked:
				result.ProductsChecked++
			case ev.candidate != nil:
				if s.ledger.Record(ev.candidate.ID) {
					result.Matches = append(result.Matches, *ev.candidate)
				}
			case ev.categoryDone:
				if ev.categoryOK {
					categoriesOK++
				} else {
					categoriesFailed++
				}
			}
		}
	}()

	var g errgroup.Group
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			w := &worker{
				scanner: s,
				opts:    opts,
				limiter: newLimiter(opts.RequestDelay),
				visited: visited,
				events:  events,
			}
			for job := range jobCh {
				if ctx.Err() != nil {
					return nil
				}
				w.scanCategory(ctx, job)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(events)
	<-collected

	sortMatches(result.Matches)
	result.CategoriesScanned = categoriesOK

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if categoriesOK == 0 && categoriesFailed > 0 {
		return result, scanerr.NewPassFatal(scanerr.ReasonNoCategoriesDiscovered, seed.String(),
			fmt.Sprintf("all %d category pages failed", categoriesFailed), nil)
	}
	return result, nil
}

// discover turns the seed page into category jobs. A seed without category
// navigation is itself the only listing.
func (s *Scanner) discover(seed classifier.Page, opts Options) []categoryJob {
	rec := s.classifier.Classify(seed)
	if rec.Kind != classifier.CategoryPage {
		return []categoryJob{{url: seed.URL, page: &seed}}
	}
	jobs := make([]categoryJob, 0, len(rec.Links))
	for _, link := range rec.Links {
		jobs = append(jobs, categoryJob{url: withQuery(link, opts.SortQuery)})
	}
	return jobs
}

// fetch fetches rawURL, retrying once after backoff when the failure is
// transient. Rate-limit blocks are not retried.
func (s *Scanner) fetch(ctx context.Context, limiter *rate.Limiter, rawURL string, backoff time.Duration) (*helpers.Response, *scanerr.ScanError) {
	resp, err := s.fetchOnce(ctx, limiter, rawURL)
	if err == nil || !err.IsRetryable() {
		return resp, err
	}

	s.log.Debug().Str("url", rawURL).Err(err).Msg("retrying after transient failure")
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, err
	case <-timer.C:
	}
	return s.fetchOnce(ctx, limiter, rawURL)
}

func (s *Scanner) fetchOnce(ctx context.Context, limiter *rate.Limiter, rawURL string) (*helpers.Response, *scanerr.ScanError) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, scanerr.NewConnection(rawURL, err)
	}
	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err == nil {
		return resp, nil
	}
	var scanErr *scanerr.ScanError
	if errors.As(err, &scanErr) {
		if scanErr.URL == "" {
			scanErr.URL = rawURL
		}
		return nil, scanErr
	}
	return nil, scanerr.NewConnection(rawURL, err)
}

func parseSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, scanerr.NewPassFatal(scanerr.ReasonMalformedSeed, raw, "seed must be an absolute http(s) URL", err)
	}
	u.Fragment = ""
	return u, nil
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// pageFrom builds a page for classification, preferring the final URL after
// redirects.
func pageFrom(requested *url.URL, resp *helpers.Response) classifier.Page {
	u := requested
	if resp.URL != "" {
		if final, err := url.Parse(resp.URL); err == nil && final.IsAbs() {
			u = final
		}
	}
	return classifier.Page{URL: u, Body: resp.Body}
}

// withQuery merges rawQuery into u without overriding parameters u already has
func withQuery(u *url.URL, rawQuery string) *url.URL {
	if rawQuery == "" {
		return u
	}
	extra, err := url.ParseQuery(rawQuery)
	if err != nil {
		return u
	}
	out := *u
	q := out.Query()
	for key, values := range extra {
		if _, ok := q[key]; !ok {
			q[key] = values
		}
	}
	out.RawQuery = q.Encode()
	return &out
}

func sortMatches(matches []Product) {
	sort.Slice(matches, func(i, j int) bool {
		if c := matches[i].Price.Amount.Cmp(matches[j].Price.Amount); c != 0 {
			return c < 0
		}
		return matches[i].ID < matches[j].ID
	})
}
