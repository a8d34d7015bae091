package classifier

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"sjsage522/pricewatch/internal/exclusion"
	"sjsage522/pricewatch/internal/price"
	"sjsage522/pricewatch/internal/selector"

	"github.com/PuerkitoBio/goquery"
)

// Kind discriminates page records
type Kind int

const (
	Unrecognized Kind = iota
	CategoryPage
	ProductPage
)

func (k Kind) String() string {
	switch k {
	case CategoryPage:
		return "category"
	case ProductPage:
		return "product"
	default:
		return "unrecognized"
	}
}

// Page is a fetched page ready for classification
type Page struct {
	URL  *url.URL
	Body []byte
}

// Record is the result of classifying one page
type Record struct {
	Kind Kind

	// CategoryPage
	Links []*url.URL

	// ProductPage
	Title     string
	PriceText string
	Price     price.Parsed
	URL       *url.URL
}

// ProductLink is a product found on a listing page
type ProductLink struct {
	URL  *url.URL
	Text string
	// Listed is the price shown next to the link, nil when none was found
	Listed *price.Parsed
}

// Listing is a category page seen as a list of products
type Listing struct {
	Products []ProductLink
	Pages    []*url.URL
}

// Classifier turns fetched pages into records. It holds no mutable state.
type Classifier struct {
	resolver *selector.Resolver
	filter   *exclusion.Filter
}

// New creates a classifier
func New(resolver *selector.Resolver, filter *exclusion.Filter) *Classifier {
	return &Classifier{resolver: resolver, filter: filter}
}

// Filter returns the exclusion filter in use
func (c *Classifier) Filter() *exclusion.Filter {
	return c.filter
}

func (c *Classifier) document(page Page) (*goquery.Document, bool) {
	if page.URL == nil || len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// Classify returns a CategoryPage when the page carries category navigation,
// else a ProductPage when it has a title and a price, else Unrecognized.
func (c *Classifier) Classify(page Page) Record {
	doc, ok := c.document(page)
	if !ok {
		return Record{Kind: Unrecognized}
	}
	if links := c.categoryLinks(doc, page.URL); len(links) > 0 {
		return Record{Kind: CategoryPage, Links: links}
	}
	return c.product(doc, page.URL)
}

// ClassifyProduct classifies a page fetched as a presumed product detail page
func (c *Classifier) ClassifyProduct(page Page) Record {
	doc, ok := c.document(page)
	if !ok {
		return Record{Kind: Unrecognized}
	}
	return c.product(doc, page.URL)
}

// ClassifyListing extracts product links (cheapest listed price first) and
// pagination links from a category page.
func (c *Classifier) ClassifyListing(page Page) Listing {
	doc, ok := c.document(page)
	if !ok {
		return Listing{}
	}

	var listing Listing
	seen := make(map[string]struct{})
	products, _ := c.resolver.ResolveWhere(doc.Selection, selector.RoleProductLink, c.followable(page.URL))
	products.Each(func(_ int, s *goquery.Selection) {
		text := selector.Text(s)
		u, ok := c.followLink(page.URL, s)
		if !ok {
			return
		}
		key := linkKey(u)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		listing.Products = append(listing.Products, ProductLink{
			URL:    u,
			Text:   text,
			Listed: c.listedPrice(s),
		})
	})
	sortByListedPrice(listing.Products)

	pageSeen := map[string]struct{}{linkKey(page.URL): {}}
	c.resolver.Resolve(doc.Selection, selector.RolePagination).Each(func(_ int, s *goquery.Selection) {
		u, ok := c.resolveLink(page.URL, selector.Href(s), "")
		if !ok || u.Host != page.URL.Host {
			return
		}
		key := linkKey(u)
		if _, dup := pageSeen[key]; dup {
			return
		}
		pageSeen[key] = struct{}{}
		listing.Pages = append(listing.Pages, u)
	})

	return listing
}

func (c *Classifier) categoryLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	var links []*url.URL
	seen := make(map[string]struct{})
	categories, _ := c.resolver.ResolveWhere(doc.Selection, selector.RoleCategory, c.followable(base))
	categories.Each(func(_ int, s *goquery.Selection) {
		u, ok := c.followLink(base, s)
		if !ok {
			return
		}
		key := linkKey(u)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, u)
	})
	return links
}

func (c *Classifier) product(doc *goquery.Document, pageURL *url.URL) Record {
	if c.filter.ShouldExclude(pageURL, "") {
		return Record{Kind: Unrecognized}
	}

	titleSel := c.resolver.Resolve(doc.Selection, selector.RoleTitle)
	priceSel := c.resolver.Resolve(doc.Selection, selector.RolePrice)
	if titleSel.Length() == 0 || priceSel.Length() == 0 {
		return Record{Kind: Unrecognized}
	}

	title := selector.Text(titleSel.First())
	if c.filter.ExcludesText(title) {
		return Record{Kind: Unrecognized}
	}

	priceText := selector.Text(priceSel.First())
	parsed, err := price.Parse(priceText)
	if err != nil {
		return Record{Kind: Unrecognized}
	}

	return Record{
		Kind:      ProductPage,
		Title:     title,
		PriceText: priceText,
		Price:     parsed,
		URL:       pageURL,
	}
}

// listedPrice looks for a price inside the card that encloses a product link
func (c *Classifier) listedPrice(link *goquery.Selection) *price.Parsed {
	card := link.Parent().Closest(`[data-product-id], [class*="product"], [class*="item"], article, li`)
	if card.Length() == 0 {
		return nil
	}
	sel := c.resolver.Resolve(card, selector.RolePrice)
	if sel.Length() == 0 {
		return nil
	}
	p, err := price.Parse(selector.Text(sel.First()))
	if err != nil {
		return nil
	}
	return &p
}

// followLink resolves the anchor s against base and keeps it only when it
// points to another page of the same shop that is not excluded.
func (c *Classifier) followLink(base *url.URL, s *goquery.Selection) (*url.URL, bool) {
	u, ok := c.resolveLink(base, selector.Href(s), selector.Text(s))
	if !ok || u.Host != base.Host || sameResource(u, base) {
		return nil, false
	}
	return u, true
}

// followable lets a category or product link strategy win only when one of
// its anchors survives followLink. A utility nav holding nothing but account
// and cart links then falls through to the next strategy.
func (c *Classifier) followable(base *url.URL) selector.ElementCheck {
	return func(s *goquery.Selection) bool {
		_, ok := c.followLink(base, s)
		return ok
	}
}

func (c *Classifier) resolveLink(base *url.URL, href, text string) (*url.URL, bool) {
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	if c.filter.ShouldExclude(u, text) {
		return nil, false
	}
	return u, true
}

func sortByListedPrice(links []ProductLink) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i].Listed, links[j].Listed
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Amount.LessThan(b.Amount)
		}
	})
}

func linkKey(u *url.URL) string {
	key := strings.ToLower(u.Host) + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func sameResource(a, b *url.URL) bool {
	return linkKey(a) == linkKey(b)
}
