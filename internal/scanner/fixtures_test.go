package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/classifier"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/internal/exclusion"
	"sjsage522/pricewatch/internal/ledger"
	"sjsage522/pricewatch/internal/selector"
	"sjsage522/pricewatch/logger"
	scanerr "sjsage522/pricewatch/pkg/errors"
)

const shop = "https://shop.example"

// fakeFetcher serves pages from a map. failures are consumed one per call
// before the page itself is served.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string][]error
	calls    map[string]int
}

var _ crawler.Fetcher = (*fakeFetcher)(nil)

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{
		pages:    pages,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) failWith(rawURL string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[rawURL] = append(f.failures[rawURL], errs...)
}

func (f *fakeFetcher) callsTo(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*helpers.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++

	if errs := f.failures[rawURL]; len(errs) > 0 {
		f.failures[rawURL] = errs[1:]
		return nil, errs[0]
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, scanerr.NewHTTPStatus(rawURL, 404)
	}
	return &helpers.Response{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

const navHTML = `<nav><a href="/">Home</a><a href="/c/a">Category A</a><a href="/c/b">Category B</a><a href="/cart">Cart</a></nav>`

func listingHTML(items ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>" + navHTML + `<div class="grid">`)
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func item(href, name, priceText string) string {
	return fmt.Sprintf(`<div class="product-item"><a href="%s">%s</a><span class="price">%s</span></div>`, href, name, priceText)
}

func productHTML(title, priceText string) string {
	return fmt.Sprintf(`<html><body>%s<div class="product-detail"><h1 class="product-title">%s</h1><span class="price">%s</span></div></body></html>`,
		navHTML, title, priceText)
}

// scenarioPages is a shop with two categories: A holds products at 5.00,
// 12.00 and 8.99, B one product at 3.50.
func scenarioPages() map[string]string {
	return map[string]string{
		shop + "/": "<html><body>" + navHTML + "<p>Welcome</p></body></html>",
		shop + "/c/a?sort_by=price_asc": listingHTML(
			item("/p/a1", "Ceramic Mug A1", "5,00 €"),
			item("/p/a2", "Ceramic Mug A2", "12,00 €"),
			item("/p/a3", "Ceramic Mug A3", "8,99 €"),
		),
		shop + "/c/b?sort_by=price_asc": listingHTML(
			item("/p/b1", "Dinner Plate B1", "3,50 €"),
		),
		shop + "/p/a1": productHTML("Ceramic Mug A1", "5,00 €"),
		shop + "/p/a2": productHTML("Ceramic Mug A2", "12,00 €"),
		shop + "/p/a3": productHTML("Ceramic Mug A3", "8,99 €"),
		shop + "/p/b1": productHTML("Dinner Plate B1", "3,50 €"),
	}
}

func newScanner(f crawler.Fetcher, led *ledger.Ledger) *Scanner {
	cls := classifier.New(selector.NewResolver(), exclusion.MustNew(nil))
	return New(f, cls, led, logger.Nop())
}

func matchIDs(r *Result) []string {
	ids := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		ids = append(ids, m.ID)
	}
	return ids
}
