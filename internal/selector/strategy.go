package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Role is the semantic purpose of an element on a shop page
type Role int

const (
	RoleCategory Role = iota
	RoleProductLink
	RoleTitle
	RolePrice
	RolePagination
)

func (r Role) String() string {
	switch r {
	case RoleCategory:
		return "category"
	case RoleProductLink:
		return "product_link"
	case RoleTitle:
		return "title"
	case RolePrice:
		return "price"
	case RolePagination:
		return "pagination"
	default:
		return "unknown"
	}
}

// Strategy is one candidate rule for locating elements of a role
type Strategy interface {
	// Name identifies the strategy in logs and tests
	Name() string
	// TryResolve returns the plausible matches under root, possibly empty
	TryResolve(root *goquery.Selection) *goquery.Selection
}

// ElementCheck is a plausibility check applied to each candidate element
type ElementCheck func(*goquery.Selection) bool

// CSS is a strategy backed by a CSS selector and a plausibility check
type CSS struct {
	Label    string
	Selector string
	Check    ElementCheck
}

// Name implements Strategy
func (c CSS) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Selector
}

// TryResolve implements Strategy
func (c CSS) TryResolve(root *goquery.Selection) *goquery.Selection {
	found := root.Find(c.Selector)
	if c.Check == nil {
		return found
	}
	return found.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return c.Check(s)
	})
}

// Func adapts a plain function into a Strategy
type Func struct {
	Label   string
	Resolve func(root *goquery.Selection) *goquery.Selection
}

// Name implements Strategy
func (f Func) Name() string { return f.Label }

// TryResolve implements Strategy
func (f Func) TryResolve(root *goquery.Selection) *goquery.Selection {
	return f.Resolve(root)
}

// Text returns the visible text of s, preferring the title, content and
// data-price attributes when they are set.
func Text(s *goquery.Selection) string {
	for _, attr := range []string{"content", "data-price", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

// Href returns the trimmed href of s
func Href(s *goquery.Selection) string {
	href, _ := s.Attr("href")
	return strings.TrimSpace(href)
}
