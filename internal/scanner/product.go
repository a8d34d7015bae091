package scanner

import (
	"net/url"
	"path"
	"strings"

	"sjsage522/pricewatch/internal/price"
)

// Product is a product page priced at or below the threshold
type Product struct {
	ID    string
	Title string
	Price price.Parsed
	URL   string
}

// ignoredParams never contribute to a product's identity
var ignoredParams = map[string]bool{
	"ref":     true,
	"sort":    true,
	"sort_by": true,
	"order":   true,
	"page":    true,
	"fbclid":  true,
	"gclid":   true,
}

// CanonicalID derives the identifier a product is remembered by: the cleaned
// path without a trailing slash, plus the sorted query when it carries
// parameters other than tracking and sorting ones.
func CanonicalID(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	q := u.Query()
	for key := range q {
		if ignoredParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	if len(q) == 0 {
		return p
	}
	return p + "?" + q.Encode()
}
