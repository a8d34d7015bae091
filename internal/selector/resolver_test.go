package selector

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func hrefs(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Href(s))
	})
	return out
}

func TestStrategyCounts(t *testing.T) {
	r := NewResolver()
	assert.Len(t, r.Strategies(RoleCategory), 9)
	assert.Len(t, r.Strategies(RoleProductLink), 8)
	assert.Len(t, r.Strategies(RoleTitle), 7)
	assert.Len(t, r.Strategies(RolePrice), 5)
	assert.Len(t, r.Strategies(RolePagination), 6)
}

func TestResolveCategoryFirstMatchWins(t *testing.T) {
	doc := newDoc(t, `<html><body>
		<nav><a href="/">Home</a><a href="/c/first">First</a></nav>
		<div class="navigation"><a href="/c/second">Second</a></div>
	</body></html>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RoleCategory)
	assert.Equal(t, "nav a", name)
	assert.Equal(t, []string{"/c/first"}, hrefs(sel))
}

func TestResolveFallsThroughImplausibleMatches(t *testing.T) {
	// nav only holds unusable links, so the second strategy decides
	doc := newDoc(t, `<html><body>
		<nav><a href="#">Top</a><a href="javascript:void(0)">Menu</a></nav>
		<div class="navigation"><a href="/c/shoes">Shoes</a></div>
	</body></html>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RoleCategory)
	assert.Equal(t, ".navigation a", name)
	assert.Equal(t, []string{"/c/shoes"}, hrefs(sel))
}

func TestResolveWhereSkipsStrategiesTheCallerRejects(t *testing.T) {
	doc := newDoc(t, `<html><body>
		<nav><a href="/account">Account</a><a href="/cart">Cart</a></nav>
		<ul class="menu"><li><a href="/c/a">A</a></li><li><a href="/c/b">B</a></li></ul>
	</body></html>`)
	notUtility := func(s *goquery.Selection) bool {
		href := Href(s)
		return href != "/account" && href != "/cart"
	}

	sel, name := NewResolver().ResolveWhere(doc.Selection, RoleCategory, notUtility)
	assert.Equal(t, ".menu a", name)
	assert.Equal(t, []string{"/c/a", "/c/b"}, hrefs(sel))

	// without the extra check the utility nav wins
	_, name = NewResolver().ResolveNamed(doc.Selection, RoleCategory)
	assert.Equal(t, "nav a", name)
}

func TestResolveNeverConsultsLaterStrategies(t *testing.T) {
	doc := newDoc(t, `<div><span class="a">one</span><span class="b">two</span></div>`)
	secondCalled := false

	r := NewResolverWith(map[Role][]Strategy{
		RoleTitle: {
			CSS{Selector: "span.a"},
			Func{Label: "spy", Resolve: func(root *goquery.Selection) *goquery.Selection {
				secondCalled = true
				return root.Find("span.b")
			}},
		},
	})

	sel := r.Resolve(doc.Selection, RoleTitle)
	assert.Equal(t, "one", sel.Text())
	assert.False(t, secondCalled)
}

func TestResolveNothingFound(t *testing.T) {
	doc := newDoc(t, `<html><body><p>Nothing here</p></body></html>`)
	r := NewResolver()

	for _, role := range []Role{RoleCategory, RoleProductLink, RoleTitle, RolePrice, RolePagination} {
		sel, name := r.ResolveNamed(doc.Selection, role)
		assert.Equal(t, 0, sel.Length(), role.String())
		assert.Empty(t, name)
	}
}

func TestResolvePrice(t *testing.T) {
	doc := newDoc(t, `<div class="product-card">
		<span class="badge price-badge">-20%</span>
		<span class="price">Save 15%</span>
		<span class="price">8,99 €</span>
	</div>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RolePrice)
	assert.Equal(t, "price", name)
	require.Equal(t, 1, sel.Length())
	assert.Equal(t, "8,99 €", Text(sel))
}

func TestResolvePriceVetoIsWordBased(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Recommended price 12,00 €", true},
		{"Second hand 7,50 €", true},
		{"Décor 4,00 €", true},
		{"Eco-tax 0,50 €", false},
		{"incl. ecotax 0,20 €", false},
		{"You save 3,00 €", false},
		{"Discount 2,00 €", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			doc := newDoc(t, `<span class="price">`+tt.text+`</span>`)
			assert.Equal(t, tt.want, plausiblePrice(doc.Find("span")))
		})
	}
}

func TestResolvePriceFromMeta(t *testing.T) {
	doc := newDoc(t, `<html><head></head><body>
		<meta itemprop="price" content="12.50">
		<span class="price">99.00</span>
	</body></html>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RolePrice)
	assert.Equal(t, "itemprop-price", name)
	assert.Equal(t, "12.50", Text(sel.First()))
}

func TestResolveTitle(t *testing.T) {
	doc := newDoc(t, `<html><body>
		<h1>Hi</h1>
		<h1 class="product-title">Blue Ceramic Mug</h1>
	</body></html>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RoleTitle)
	assert.Equal(t, "h1-product", name)
	assert.Equal(t, "Blue Ceramic Mug", Text(sel.First()))
}

func TestResolveTitleLongestLinkFallback(t *testing.T) {
	doc := newDoc(t, `<div>
		<a href="/x">Short</a>
		<a href="/y">A reasonably long product name</a>
	</div>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RoleTitle)
	assert.Equal(t, "longest-link-text", name)
	assert.Equal(t, "A reasonably long product name", Text(sel))
}

func TestResolveProductLinks(t *testing.T) {
	doc := newDoc(t, `<div class="grid">
		<div class="product-item"><a href="/p/a">A</a></div>
		<div class="product-item"><a href="#">skip</a><a href="/p/b">B</a></div>
		<div class="product"><a href="/p/c">C</a></div>
	</div>`)

	sel, name := NewResolver().ResolveNamed(doc.Selection, RoleProductLink)
	assert.Equal(t, "product-item", name)
	assert.Equal(t, []string{"/p/a", "/p/b"}, hrefs(sel))
}

func TestText(t *testing.T) {
	doc := newDoc(t, `<div><a id="a" title="Full title here" href="/x">Short</a><span id="s">  spaced
		text </span></div>`)
	assert.Equal(t, "Full title here", Text(doc.Find("#a")))
	assert.Equal(t, "spaced text", Text(doc.Find("#s")))
}
