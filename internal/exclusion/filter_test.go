package exclusion

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestShouldExcludeURL(t *testing.T) {
	f := MustNew(nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://shop.example/cart", true},
		{"https://shop.example/checkout/step-1", true},
		{"https://shop.example/account/orders", true},
		{"https://shop.example/customer/login?next=/", true},
		{"https://shop.example/wishlist", true},
		{"https://shop.example/compare?ids=1,2", true},
		{"https://shop.example/gift-card-50", true},
		{"https://shop.example/products/cartoon-mug", false},
		{"https://shop.example/search?q=mug", true},
		{"https://shop.example/delivery/", true},
		{"https://shop.example/help/delivery.html", true},
		{"https://shop.example/p/search-light", false},
		{"https://shop.example/delivery-van-toy", false},
		{"https://shop.example/c/account_books", false},
		{"https://shop.example/category/toys", false},
		{"https://shop.example/p/widget-a", false},
		{"mailto:shop@example.com", true},
		{"javascript:void(0)", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldExclude(mustURL(t, tt.url), ""))
		})
	}
}

func TestShouldExcludeLinkText(t *testing.T) {
	f := MustNew(nil)
	u := mustURL(t, "https://shop.example/p/123")

	assert.True(t, f.ShouldExclude(u, "Gift Card 25"))
	assert.True(t, f.ShouldExclude(u, "Holiday VOUCHER"))
	assert.True(t, f.ShouldExclude(u, "Coupon book"))
	assert.True(t, f.ShouldExclude(u, "-20%"))
	assert.False(t, f.ShouldExclude(u, "Blue ceramic mug"))
	assert.False(t, f.ShouldExclude(u, ""))
}

func TestCustomGlobPatterns(t *testing.T) {
	f, err := New([]string{"*/outlet/*", "clearance"})
	require.NoError(t, err)

	assert.True(t, f.ShouldExclude(mustURL(t, "https://shop.example/en/outlet/shoes"), ""))
	assert.True(t, f.ShouldExclude(mustURL(t, "https://shop.example/clearance-sale"), ""))
	assert.False(t, f.ShouldExclude(mustURL(t, "https://shop.example/en/shoes"), ""))

	_, err = New([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestExclusionTakesPrecedence(t *testing.T) {
	// a URL that looks like a product link but also matches an exclusion rule
	f := MustNew([]string{"/product/gift"})
	u := mustURL(t, "https://shop.example/product/gift/wrap")
	assert.True(t, f.ShouldExclude(u, "Nice product"))
}

func TestIsPromotional(t *testing.T) {
	assert.True(t, IsPromotional("-20%"))
	assert.True(t, IsPromotional("Save 15%"))
	assert.True(t, IsPromotional("30% off"))
	assert.True(t, IsPromotional("Extra 10% discount on everything"))
	assert.False(t, IsPromotional("$9.99"))
	assert.False(t, IsPromotional("100% cotton shirt"))
	assert.False(t, IsPromotional(""))
}

func TestPatternsAreDeduplicated(t *testing.T) {
	f, err := NewWithPatterns([]string{"/cart", "/CART", " ", "voucher"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/cart", "voucher"}, f.Patterns())
}
