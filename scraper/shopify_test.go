package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/shopcrawl/shopcrawl/config"
)

const storeSitemapIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://store.test/sitemap_products_1.xml</loc></sitemap>
  <sitemap><loc>https://store.test/sitemap_pages_1.xml</loc></sitemap>
  <sitemap><loc>https://store.test/sitemap_blogs_1.xml</loc></sitemap>
</sitemapindex>`

const storeProductSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://store.test/products/red-sneaker</loc></url>
  <url><loc>https://store.test/products/blue-sneaker</loc></url>
  <url><loc>https://store.test/collections/all</loc></url>
  <url><loc>https://store.test/products/green-sneaker</loc></url>
</urlset>`

func shopifyConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Platform = config.PlatformShopify
	cfg.TargetURL = "https://store.test"
	cfg.Delay = 0
	return cfg
}

func newShopifyUnderTest(t *testing.T, transport *httpmock.MockTransport) *Shopify {
	t.Helper()
	s, err := NewShopify(shopifyConfig(), NewMetrics())
	if err != nil {
		t.Fatalf("new shopify: %v", err)
	}
	s.Client().WithTransport(transport)
	return s
}

func registerStoreSitemaps(transport *httpmock.MockTransport) {
	transport.RegisterResponder("GET", "https://store.test/sitemap.xml",
		httpmock.NewStringResponder(200, storeSitemapIndex))
	transport.RegisterResponder("GET", "https://store.test/sitemap_products_1.xml",
		httpmock.NewStringResponder(200, storeProductSitemap))
}

func productJSON(slug, title, ptype string, prices []int64) string {
	variants := ""
	for i, p := range prices {
		if i > 0 {
			variants += ","
		}
		variants += fmt.Sprintf(`{"price":%d}`, p)
	}
	return fmt.Sprintf(`{"title":%q,"type":%q,"description":"<p>Soft &amp; light.</p>","variants":[%s],"images":["//cdn.store.test/img/%s.jpg"]}`,
		title, ptype, variants, slug)
}

func TestShopifyExtractsFromSitemapHandles(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerStoreSitemaps(transport)
	transport.RegisterResponder("GET", "https://store.test/products/red-sneaker.js",
		httpmock.NewStringResponder(200, productJSON("red-sneaker", "Red Sneaker", "Shoes", []int64{120000, 99900})))
	transport.RegisterResponder("GET", "https://store.test/products/blue-sneaker.js",
		httpmock.NewStringResponder(200, productJSON("blue-sneaker", "Blue Sneaker", "", []int64{12050})))
	transport.RegisterResponder("GET", "https://store.test/products/green-sneaker.js",
		httpmock.NewStringResponder(200, `{"title":"Green Sneaker","type":"Shoes","description":"","variants":[],"images":[]}`))

	s := newShopifyUnderTest(t, transport)
	catalog, result, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(catalog) != 3 {
		t.Fatalf("records=%d, want 3", len(catalog))
	}

	red := catalog[0]
	if red.Name != "Red Sneaker" {
		t.Fatalf("first record name = %q", red.Name)
	}
	if red.Price != "₹999" {
		t.Fatalf("price = %q, want cheapest variant ₹999", red.Price)
	}
	if red.URL != "https://store.test/products/red-sneaker" {
		t.Fatalf("url = %q", red.URL)
	}
	if red.Image != "https://cdn.store.test/img/red-sneaker.jpg" {
		t.Fatalf("image = %q, protocol-relative src must be resolved", red.Image)
	}
	if red.Description != "Soft & light." {
		t.Fatalf("description = %q, want markup stripped", red.Description)
	}

	blue := catalog[1]
	if blue.Category != "" {
		t.Fatalf("category = %q, want empty when type is absent", blue.Category)
	}
	if blue.Price != "₹120.50" {
		t.Fatalf("price = %q", blue.Price)
	}

	green := catalog[2]
	if green.Price != "" {
		t.Fatalf("price = %q, want empty without variants", green.Price)
	}
	if green.Image != "" {
		t.Fatalf("image = %q, want empty without images", green.Image)
	}

	if result.PageCount != 1 {
		t.Fatalf("pages=%d, want 1 product sitemap", result.PageCount)
	}
}

func TestShopifySkipsFailedHandles(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerStoreSitemaps(transport)
	transport.RegisterResponder("GET", "https://store.test/products/red-sneaker.js",
		httpmock.NewStringResponder(200, productJSON("red-sneaker", "Red Sneaker", "Shoes", []int64{120000})))
	transport.RegisterResponder("GET", "https://store.test/products/blue-sneaker.js",
		httpmock.NewStringResponder(404, "not found"))
	transport.RegisterResponder("GET", "https://store.test/products/green-sneaker.js",
		httpmock.NewStringResponder(200, productJSON("green-sneaker", "Green Sneaker", "Shoes", []int64{85000})))

	s := newShopifyUnderTest(t, transport)
	catalog, result, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(catalog) != 2 {
		t.Fatalf("records=%d, want 2", len(catalog))
	}
	if catalog[0].Name != "Red Sneaker" || catalog[1].Name != "Green Sneaker" {
		t.Fatalf("unexpected records: %q, %q", catalog[0].Name, catalog[1].Name)
	}
	if result.SkippedCount != 1 {
		t.Fatalf("skipped=%d, want 1", result.SkippedCount)
	}
	if len(result.FailedURLs) != 1 || result.FailedURLs[0] != "https://store.test/products/blue-sneaker.js" {
		t.Fatalf("failed urls = %v", result.FailedURLs)
	}
	if result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("errors by type = %v", result.ErrorsByType)
	}
}

func TestShopifySkipsUntitledProducts(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerStoreSitemaps(transport)
	for _, h := range []string{"red-sneaker", "blue-sneaker", "green-sneaker"} {
		body := productJSON(h, "Sneaker "+h, "Shoes", []int64{50000})
		if h == "blue-sneaker" {
			body = `{"title":"  ","type":"Shoes","variants":[{"price":50000}]}`
		}
		transport.RegisterResponder("GET", "https://store.test/products/"+h+".js",
			httpmock.NewStringResponder(200, body))
	}

	s := newShopifyUnderTest(t, transport)
	catalog, result, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("records=%d, want 2", len(catalog))
	}
	if result.SkippedCount != 1 {
		t.Fatalf("skipped=%d, want 1", result.SkippedCount)
	}
}

func TestShopifySitemapFailureIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://store.test/sitemap.xml",
		httpmock.NewStringResponder(503, "unavailable"))

	s := newShopifyUnderTest(t, transport)
	catalog, _, err := s.Extract(context.Background())

	var lerr *ListingError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *ListingError, got %v", err)
	}
	if lerr.Stage != "sitemap fetch" {
		t.Fatalf("stage = %q", lerr.Stage)
	}
	if len(catalog) != 0 {
		t.Fatalf("records=%d, want 0", len(catalog))
	}
}

func TestShopifyProductSitemapFailureIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://store.test/sitemap.xml",
		httpmock.NewStringResponder(200, storeSitemapIndex))
	transport.RegisterResponder("GET", "https://store.test/sitemap_products_1.xml",
		httpmock.NewStringResponder(500, "boom"))

	s := newShopifyUnderTest(t, transport)
	_, _, err := s.Extract(context.Background())

	var lerr *ListingError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *ListingError, got %v", err)
	}
	if lerr.URL != "https://store.test/sitemap_products_1.xml" {
		t.Fatalf("error url = %q", lerr.URL)
	}
}
