package classifier

import (
	"net/url"
	"testing"

	"sjsage522/pricewatch/internal/exclusion"
	"sjsage522/pricewatch/internal/selector"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier() *Classifier {
	return New(selector.NewResolver(), exclusion.MustNew(nil))
}

func page(t *testing.T, raw, body string) Page {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return Page{URL: u, Body: []byte(body)}
}

func urls(in []*url.URL) []string {
	out := make([]string, len(in))
	for i, u := range in {
		out[i] = u.String()
	}
	return out
}

const homeHTML = `<html><body>
<header><nav>
	<a href="/">Home</a>
	<a href="/c/mugs">Mugs</a>
	<a href="/c/mugs#top">Mugs again</a>
	<a href="/c/plates/">Plates</a>
	<a href="/cart">Cart</a>
	<a href="/account/login">Login</a>
	<a href="https://other.example/c/x">Elsewhere</a>
	<a href="/c/gift-card">Gift Cards</a>
</nav></header>
</body></html>`

func TestClassifyCategoryPage(t *testing.T) {
	rec := newClassifier().Classify(page(t, "https://shop.example/", homeHTML))

	assert.Equal(t, CategoryPage, rec.Kind)
	assert.Equal(t, []string{
		"https://shop.example/c/mugs",
		"https://shop.example/c/plates/",
	}, urls(rec.Links))
}

func TestClassifyUtilityNavDoesNotShadowCategoryMenu(t *testing.T) {
	body := `<html><body>
<nav><a href="/account">My account</a><a href="/cart">Cart</a><a href="https://help.example/c/faq">Help</a></nav>
<ul class="menu">
	<li><a href="/c/a">Category A</a></li>
	<li><a href="/c/b">Category B</a></li>
</ul>
</body></html>`

	rec := newClassifier().Classify(page(t, "https://shop.example/", body))

	require.Equal(t, CategoryPage, rec.Kind)
	assert.Equal(t, []string{
		"https://shop.example/c/a",
		"https://shop.example/c/b",
	}, urls(rec.Links))
}

func TestClassifySelfLinkingNavFallsThrough(t *testing.T) {
	body := `<html><body>
<nav><a href="/c/mugs">Mugs</a><a href="/c/mugs/#top">Top</a></nav>
<div class="navigation"><a href="/c/plates">Plates</a></div>
</body></html>`

	rec := newClassifier().Classify(page(t, "https://shop.example/c/mugs", body))

	require.Equal(t, CategoryPage, rec.Kind)
	assert.Equal(t, []string{"https://shop.example/c/plates"}, urls(rec.Links))
}

const productHTML = `<html><body>
<div class="product-detail">
	<h1 class="product-title">Blue Ceramic Mug</h1>
	<span class="badge">-20%</span>
	<span class="price">8,99 €</span>
</div>
</body></html>`

func TestClassifyProductPage(t *testing.T) {
	rec := newClassifier().Classify(page(t, "https://shop.example/p/blue-mug", productHTML))

	require.Equal(t, ProductPage, rec.Kind)
	assert.Equal(t, "Blue Ceramic Mug", rec.Title)
	assert.Equal(t, "8,99 €", rec.PriceText)
	assert.True(t, decimal.RequireFromString("8.99").Equal(rec.Price.Amount))
	assert.Equal(t, "€", rec.Price.CurrencySymbol)
	assert.Equal(t, "https://shop.example/p/blue-mug", rec.URL.String())
}

func TestClassifyProductExcludedByTitle(t *testing.T) {
	body := `<html><body><h1 class="product-title">Gift Card 25 EUR</h1><span class="price">25,00 €</span></body></html>`
	rec := newClassifier().ClassifyProduct(page(t, "https://shop.example/p/card", body))
	assert.Equal(t, Unrecognized, rec.Kind)
}

func TestClassifyProductExcludedByURL(t *testing.T) {
	rec := newClassifier().ClassifyProduct(page(t, "https://shop.example/checkout/p/1", productHTML))
	assert.Equal(t, Unrecognized, rec.Kind)
}

func TestClassifyUnrecognized(t *testing.T) {
	c := newClassifier()

	assert.Equal(t, Unrecognized, c.Classify(page(t, "https://shop.example/x", "")).Kind)
	assert.Equal(t, Unrecognized, c.Classify(page(t, "https://shop.example/x", "<html><body><p>About us</p></body></html>")).Kind)

	// title without price
	body := `<html><body><h1 class="product-title">Blue Ceramic Mug</h1></body></html>`
	assert.Equal(t, Unrecognized, c.ClassifyProduct(page(t, "https://shop.example/p/1", body)).Kind)
}

const listingHTML = `<html><body>
<nav><a href="/c/mugs">Mugs</a></nav>
<div class="grid">
	<div class="product-item"><a href="/p/a">Mug A</a><span class="price">12,00 €</span></div>
	<div class="product-item"><a href="/p/b">Mug B</a><span class="price">5,00 €</span></div>
	<div class="product-item"><a href="/p/c">Mug C</a></div>
	<div class="product-item"><a href="/p/b">Mug B again</a><span class="price">5,00 €</span></div>
	<div class="product-item"><a href="/p/d">Mug D</a><span class="price">8,99 €</span></div>
	<div class="product-item"><a href="/cart/add?id=9">Add to cart</a></div>
</div>
<ul class="pagination">
	<li><a href="/c/mugs">1</a></li>
	<li><a href="/c/mugs?page=2">2</a></li>
	<li><a href="/c/mugs?page=2">Next</a></li>
</ul>
</body></html>`

func TestClassifyListing(t *testing.T) {
	listing := newClassifier().ClassifyListing(page(t, "https://shop.example/c/mugs", listingHTML))

	var got []string
	for _, p := range listing.Products {
		got = append(got, p.URL.Path)
	}
	// ascending listed price, unknown price last
	assert.Equal(t, []string{"/p/b", "/p/d", "/p/a", "/p/c"}, got)
	assert.Nil(t, listing.Products[3].Listed)
	assert.True(t, decimal.RequireFromString("5").Equal(listing.Products[0].Listed.Amount))

	assert.Equal(t, []string{"https://shop.example/c/mugs?page=2"}, urls(listing.Pages))
}

func TestClassifyListingSkipsCardsWithOnlyUtilityLinks(t *testing.T) {
	body := `<html><body>
<div class="product-item"><a href="/cart/add?id=1">Add to cart</a><a href="https://ads.example/p/x">Sponsored</a></div>
<article class="product"><a href="/p/real">Real Mug</a><span class="price">7,00 €</span></article>
</body></html>`

	listing := newClassifier().ClassifyListing(page(t, "https://shop.example/c/mugs", body))

	require.Len(t, listing.Products, 1)
	assert.Equal(t, "https://shop.example/p/real", listing.Products[0].URL.String())
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := newClassifier()
	p := page(t, "https://shop.example/c/mugs", listingHTML)

	first := c.ClassifyListing(p)
	second := c.ClassifyListing(p)
	assert.Equal(t, urls(pagesOf(first)), urls(pagesOf(second)))
	assert.Equal(t, len(first.Products), len(second.Products))
}

func pagesOf(l Listing) []*url.URL {
	out := make([]*url.URL, 0, len(l.Products))
	for _, p := range l.Products {
		out = append(out, p.URL)
	}
	return out
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "category", CategoryPage.String())
	assert.Equal(t, "product", ProductPage.String())
	assert.Equal(t, "unrecognized", Unrecognized.String())
}
