package scanner

import (
	"context"
	"net/url"

	"sjsage522/pricewatch/internal/classifier"

	"golang.org/x/time/rate"
)

// worker walks category jobs. Each worker has its own politeness limiter.
type worker struct {
	scanner *Scanner
	opts    Options
	limiter *rate.Limiter
	visited *visitedSet
	events  chan<- event
}

func (w *worker) emit(ev event) {
	w.events <- ev
}

// scanCategory follows a category's listing pages and checks the products on
// them, cheapest listed price first.
func (w *worker) scanCategory(ctx context.Context, job categoryJob) {
	s := w.scanner
	log := s.log.WithField("category", job.url.String())

	// listing pages are keyed with the sort order merged in, so a "page 1"
	// link without it is recognised as the page already walked
	pagesSeen := map[string]struct{}{withQuery(job.url, w.opts.SortQuery).String(): {}}
	next := job.url
	prefetched := job.page
	products := 0
	ok := false
	defer func() { w.emit(event{categoryDone: true, categoryOK: ok}) }()

	for pageNum := 0; pageNum < w.opts.MaxPagesPerCategory && next != nil; pageNum++ {
		if ctx.Err() != nil {
			return
		}

		var page classifier.Page
		if prefetched != nil {
			page, prefetched = *prefetched, nil
		} else {
			resp, err := s.fetch(ctx, w.limiter, next.String(), w.opts.RetryBackoff)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Int("page", pageNum+1).Msg("listing fetch failed")
					w.emit(event{err: err})
				}
				return
			}
			page = pageFrom(next, resp)
		}
		ok = true

		listing := s.classifier.ClassifyListing(page)
		log.Debug().Int("page", pageNum+1).Int("products", len(listing.Products)).Msg("listing classified")

		for _, link := range listing.Products {
			if w.opts.MaxProductsPerCategory > 0 && products >= w.opts.MaxProductsPerCategory {
				return
			}
			if ctx.Err() != nil {
				return
			}
			id := CanonicalID(link.URL)
			if !w.visited.claim(id) {
				continue
			}
			products++
			w.checkProduct(ctx, id, link.URL)
		}

		next = nil
		for _, candidate := range listing.Pages {
			sorted := withQuery(candidate, w.opts.SortQuery)
			key := sorted.String()
			if _, seen := pagesSeen[key]; seen {
				continue
			}
			pagesSeen[key] = struct{}{}
			next = sorted
			break
		}
	}
}

func (w *worker) checkProduct(ctx context.Context, id string, u *url.URL) {
	s := w.scanner
	resp, err := s.fetch(ctx, w.limiter, u.String(), w.opts.RetryBackoff)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Str("url", u.String()).Msg("product fetch failed")
			w.emit(event{err: err})
		}
		return
	}

	rec := s.classifier.ClassifyProduct(pageFrom(u, resp))
	if rec.Kind != classifier.ProductPage {
		return
	}
	w.emit(event{checked: true})

	if rec.Price.Amount.GreaterThan(w.opts.MaxPrice) {
		return
	}
	w.emit(event{candidate: &Product{
		ID:    id,
		Title: rec.Title,
		Price: rec.Price,
		URL:   u.String(),
	}})
}
