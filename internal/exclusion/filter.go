package exclusion

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultURLPatterns covers shop pages that never list or describe a product.
// Patterns are matched against the lower-cased "path?query" of a URL; a pattern
// starting with "/" must cover a whole path segment.
var DefaultURLPatterns = []string{
	"/cart", "/basket", "/checkout",
	"/account", "/my-account", "/customer/", "/login", "/logout", "/register", "/signup", "/sign-in",
	"/password", "/forgot", "/orders", "/returns",
	"/wishlist", "/wish-list", "/favorites", "/favourites", "/compare",
	"/blog", "/contact", "/about", "/terms", "/privacy", "/policy", "/cookies",
	"/delivery", "/shipping", "/payment", "/faq", "/how-to-buy", "/newsletter", "/subscribe",
	"/size-guide", "/size-chart", "/loyalty", "/rewards", "/search",
	"gift-card", "giftcard", "gift-certificate", "voucher", "coupon",
	"add-to-cart", "add_to_cart",
}

// nonProductVocabulary marks link text and titles that name non-products
var nonProductVocabulary = []string{
	"gift card", "giftcard", "gift certificate", "voucher", "coupon",
}

var (
	percentOnly  = regexp.MustCompile(`(?i)^\s*(?:save|up to|extra|only)?\s*[-−–]?\s*\d+(?:[.,]\d+)?\s*%\s*(?:off|discount|korting|reducere)?\s*!?$`)
	discountWord = regexp.MustCompile(`(?i)\b(?:save|off|discount|sale|reduced|korting|reducere)\b`)
)

type rule struct {
	pattern string
	g       glob.Glob
}

func (r rule) match(s string) bool {
	if r.g != nil {
		return r.g.Match(s)
	}
	if !strings.HasPrefix(r.pattern, "/") {
		return strings.Contains(s, r.pattern)
	}
	// "/search" matches whole path segments: "/search", "/search/" and
	// "/search?q=mug", but not "/searchlight" or "/p/search-light"
	for offset := 0; ; {
		idx := strings.Index(s[offset:], r.pattern)
		if idx < 0 {
			return false
		}
		end := offset + idx + len(r.pattern)
		if end == len(s) || segmentEnd(s[end]) || strings.HasSuffix(r.pattern, "/") {
			return true
		}
		offset = end
	}
}

func segmentEnd(b byte) bool {
	switch b {
	case '/', '?', '#', '.', ';', '&', '=':
		return true
	}
	return false
}

// Filter decides which links and pages are not worth fetching
type Filter struct {
	rules []rule
}

// New builds a filter from DefaultURLPatterns followed by extra patterns.
// A pattern containing glob metacharacters is compiled as a glob, otherwise it
// is a substring match.
func New(extra []string) (*Filter, error) {
	patterns := make([]string, 0, len(DefaultURLPatterns)+len(extra))
	patterns = append(patterns, DefaultURLPatterns...)
	patterns = append(patterns, extra...)
	return NewWithPatterns(patterns)
}

// NewWithPatterns builds a filter from exactly the given patterns
func NewWithPatterns(patterns []string) (*Filter, error) {
	f := &Filter{}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		r := rule{pattern: p}
		if strings.ContainsAny(p, "*?[{") {
			g, err := glob.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid exclusion pattern %q: %w", p, err)
			}
			r.g = g
		}
		f.rules = append(f.rules, r)
	}
	return f, nil
}

// MustNew is like New but panics on an invalid pattern
func MustNew(extra []string) *Filter {
	f, err := New(extra)
	if err != nil {
		panic(err)
	}
	return f
}

// Patterns returns the patterns in evaluation order
func (f *Filter) Patterns() []string {
	out := make([]string, len(f.rules))
	for i, r := range f.rules {
		out[i] = r.pattern
	}
	return out
}

// ShouldExclude reports whether u (with optional link text) is not a product
// or category page.
func (f *Filter) ShouldExclude(u *url.URL, linkText string) bool {
	if u == nil {
		return true
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return true
	}
	if f.MatchesURL(u) {
		return true
	}
	return linkText != "" && f.ExcludesText(linkText)
}

// MatchesURL reports whether any URL rule matches u
func (f *Filter) MatchesURL(u *url.URL) bool {
	target := strings.ToLower(u.EscapedPath())
	if u.RawQuery != "" {
		target += "?" + strings.ToLower(u.RawQuery)
	}
	for _, r := range f.rules {
		if r.match(target) {
			return true
		}
	}
	return false
}

// ExcludesText reports whether text names a non-product or is a promotional badge
func (f *Filter) ExcludesText(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range nonProductVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return IsPromotional(text)
}

// IsPromotional reports whether text is a discount badge such as "-20%" or
// "Save 15%" rather than a price.
func IsPromotional(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if percentOnly.MatchString(text) {
		return true
	}
	return strings.Contains(text, "%") && discountWord.MatchString(text)
}
