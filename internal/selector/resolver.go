package selector

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"sjsage522/pricewatch/internal/exclusion"
	"sjsage522/pricewatch/internal/price"

	"github.com/PuerkitoBio/goquery"
)

// MinTitleLength is the number of characters a title must exceed
const MinTitleLength = 5

// priceVeto marks savings and eco-tax lines that sit next to the real price
var priceVeto = regexp.MustCompile(`(?i)\b(?:save|savings?|discount|eco|ecotax)\b`)

// Resolver finds elements for a role by trying its strategies in order
type Resolver struct {
	strategies map[Role][]Strategy
}

// NewResolver creates a resolver with the built-in strategy lists
func NewResolver() *Resolver {
	return NewResolverWith(DefaultStrategies())
}

// NewResolverWith creates a resolver with custom strategy lists
func NewResolverWith(strategies map[Role][]Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Strategies returns the ordered strategies for role
func (r *Resolver) Strategies(role Role) []Strategy {
	return r.strategies[role]
}

// Resolve returns the matches of the first strategy for role that yields at
// least one plausible element. Later strategies are never consulted once one
// succeeds. An empty selection means the role is absent from the page.
func (r *Resolver) Resolve(root *goquery.Selection, role Role) *goquery.Selection {
	sel, _ := r.ResolveNamed(root, role)
	return sel
}

// ResolveNamed is like Resolve and also returns the winning strategy name
func (r *Resolver) ResolveNamed(root *goquery.Selection, role Role) (*goquery.Selection, string) {
	return r.ResolveWhere(root, role, nil)
}

// ResolveWhere is like ResolveNamed, but a strategy only wins when at least
// one of its matches also passes keep. Callers use it to add checks that need
// page context, such as the page URL or the exclusion rules.
func (r *Resolver) ResolveWhere(root *goquery.Selection, role Role, keep ElementCheck) (*goquery.Selection, string) {
	for _, s := range r.strategies[role] {
		found := s.TryResolve(root)
		if found == nil {
			continue
		}
		if keep != nil {
			found = found.FilterFunction(func(_ int, el *goquery.Selection) bool {
				return keep(el)
			})
		}
		if found.Length() > 0 {
			return found, s.Name()
		}
	}
	return root.Slice(0, 0), ""
}

// DefaultStrategies returns fresh copies of the built-in strategy lists
func DefaultStrategies() map[Role][]Strategy {
	return map[Role][]Strategy{
		RoleCategory:    categoryStrategies(),
		RoleProductLink: productLinkStrategies(),
		RoleTitle:       titleStrategies(),
		RolePrice:       priceStrategies(),
		RolePagination:  paginationStrategies(),
	}
}

// usableLink rejects anchors without a real target
func usableLink(s *goquery.Selection) bool {
	href := Href(s)
	if href == "" || href == "/" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

func plausibleTitle(s *goquery.Selection) bool {
	return utf8.RuneCountInString(Text(s)) > MinTitleLength
}

func plausiblePrice(s *goquery.Selection) bool {
	text := Text(s)
	if exclusion.IsPromotional(text) {
		return false
	}
	if priceVeto.MatchString(text) {
		return false
	}
	p, err := price.Parse(text)
	return err == nil && price.Plausible(p)
}

func categoryStrategies() []Strategy {
	selectors := []string{
		"nav a",
		".navigation a",
		".menu a",
		".nav-menu a",
		"header nav a",
		".category-menu a",
		".main-nav a",
		"#menu a",
		"ul.menu a",
	}
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, CSS{Selector: sel, Check: usableLink})
	}
	return out
}

func productLinkStrategies() []Strategy {
	return []Strategy{
		CSS{Label: "data-product-id", Selector: "[data-product-id] a[href]", Check: usableLink},
		CSS{Label: "product-item", Selector: ".product-item a[href]", Check: usableLink},
		CSS{Label: "product-card", Selector: ".product-card a[href]", Check: usableLink},
		CSS{Label: "article-product", Selector: "article.product a[href]", Check: usableLink},
		CSS{Label: "product", Selector: ".product a[href]", Check: usableLink},
		CSS{Label: "listing-item", Selector: ".item-product a[href], .product-listing-item a[href], .grid-item a[href]", Check: usableLink},
		CSS{Label: "class-contains-product", Selector: `[class*="product"] a[href]`, Check: usableLink},
		CSS{Label: "href-contains-product", Selector: `a[href*="/product"], a[href*="/p/"]`, Check: usableLink},
	}
}

func titleStrategies() []Strategy {
	return []Strategy{
		CSS{Label: "itemprop-name", Selector: `[itemprop="name"]`, Check: plausibleTitle},
		CSS{Label: "h1-product", Selector: "h1.product-title, h1.product-name, h1.product_title", Check: plausibleTitle},
		CSS{Label: "product-title", Selector: ".product-title, .product-name", Check: plausibleTitle},
		CSS{Label: "h1", Selector: "h1", Check: plausibleTitle},
		CSS{Label: "og-title", Selector: `meta[property="og:title"]`, Check: plausibleTitle},
		CSS{Label: "heading-link", Selector: "h2 a, h3 a, h4 a, h2, h3, h4", Check: plausibleTitle},
		Func{Label: "longest-link-text", Resolve: longestLinkText},
	}
}

func priceStrategies() []Strategy {
	return []Strategy{
		CSS{Label: "itemprop-price", Selector: `[itemprop="price"]`, Check: plausiblePrice},
		CSS{Label: "price-gross", Selector: ".product__info--price-gross, .price-current, .product-price", Check: plausiblePrice},
		CSS{Label: "price", Selector: ".price", Check: plausiblePrice},
		CSS{Label: "data-price", Selector: "[data-price]", Check: plausiblePrice},
		CSS{Label: "class-contains-price", Selector: `[class*="price"]`, Check: plausiblePrice},
	}
}

func paginationStrategies() []Strategy {
	selectors := []string{
		".pagination a",
		".pager a",
		`a[rel="next"]`,
		".page-numbers a",
		"nav.pagination a",
		"ul.pagination a",
	}
	out := make([]Strategy, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, CSS{Selector: sel, Check: usableLink})
	}
	return out
}

// longestLinkText picks the anchor with the longest text when nothing else
// looked like a title.
func longestLinkText(root *goquery.Selection) *goquery.Selection {
	best := root.Slice(0, 0)
	bestLen := 10
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if n := utf8.RuneCountInString(Text(s)); n > bestLen {
			best, bestLen = s, n
		}
	})
	return best
}
