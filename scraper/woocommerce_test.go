package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/shopcrawl/shopcrawl/config"
)

func wooConfig(maxPages int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Platform = config.PlatformWooCommerce
	cfg.TargetURL = "http://shop.test/"
	cfg.MaxPages = maxPages
	cfg.Delay = 0
	return cfg
}

func buildShopPage(page, perPage int, hasNext bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="products">`)
	for i := 1; i <= perPage; i++ {
		id := (page-1)*perPage + i
		fmt.Fprintf(&b, `<li class="product" data-product_cat="shoes">`)
		fmt.Fprintf(&b, `<a href="/product-%d/"><h2 class="woocommerce-loop-product__title">Product %d</h2></a>`, id, id)
		fmt.Fprintf(&b, `<span class="price">₹%d</span>`, id*100)
		fmt.Fprintf(&b, `<img src="/media/product-%d.jpg" />`, id)
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	if hasNext {
		fmt.Fprintf(&b, `<ul class="page-numbers"><li><a class="next" href="/page/%d/">→</a></li></ul>`, page+1)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func buildDetailPage(id int) string {
	return fmt.Sprintf(`<html><body><div class="woocommerce-product-details__short-description"><p>Details for product %d.</p></div></body></html>`, id)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newWooUnderTest(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport) *WooCommerce {
	t.Helper()
	w, err := NewWooCommerce(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new woocommerce: %v", err)
	}
	w.collector.WithTransport(transport)
	w.client.WithTransport(transport)
	return w
}

func registerShop(transport *httpmock.MockTransport, pages, perPage int) {
	for p := 1; p <= pages; p++ {
		body := buildShopPage(p, perPage, p < pages)
		if p == 1 {
			transport.RegisterResponder("GET", "http://shop.test/", htmlResponder(body))
			transport.RegisterResponder("GET", "http://shop.test", htmlResponder(body))
		} else {
			transport.RegisterResponder("GET", fmt.Sprintf("http://shop.test/page/%d/", p), htmlResponder(body))
		}
	}
	for id := 1; id <= pages*perPage; id++ {
		transport.RegisterResponder("GET", fmt.Sprintf("http://shop.test/product-%d/", id),
			htmlResponder(buildDetailPage(id)))
	}
}

func TestWooCommerceVisitsAllPagesUnbounded(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerShop(transport, 3, 2)

	w := newWooUnderTest(t, wooConfig(0), transport)
	catalog, result, err := w.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if result.PageCount != 3 {
		t.Fatalf("pages=%d, want 3", result.PageCount)
	}
	if len(catalog) != 6 {
		t.Fatalf("records=%d, want 6", len(catalog))
	}
	for _, rec := range catalog {
		if rec.Name == "" || rec.URL == "" {
			t.Fatalf("record missing required fields: %+v", rec)
		}
		if rec.Category != "shoes" {
			t.Fatalf("category=%q, want shoes", rec.Category)
		}
		if rec.Description == "" {
			t.Fatalf("description should come from the detail page: %+v", rec)
		}
	}

	first := catalog[0]
	if first.Name != "Product 1" {
		t.Fatalf("first record name = %q", first.Name)
	}
	if first.URL != "http://shop.test/product-1/" {
		t.Fatalf("first record url = %q", first.URL)
	}
	if first.Image != "http://shop.test/media/product-1.jpg" {
		t.Fatalf("first record image = %q", first.Image)
	}
	if first.Description != "Details for product 1." {
		t.Fatalf("first record description = %q", first.Description)
	}
}

func TestWooCommercePageBound(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerShop(transport, 3, 2)

	w := newWooUnderTest(t, wooConfig(2), transport)
	catalog, result, err := w.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if result.PageCount != 2 {
		t.Fatalf("pages=%d, want 2", result.PageCount)
	}
	if len(catalog) != 4 {
		t.Fatalf("records=%d, want 4", len(catalog))
	}
}

func TestWooCommerceDetailFailureKeepsRecord(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerShop(transport, 1, 3)
	transport.RegisterResponder("GET", "http://shop.test/product-2/",
		httpmock.NewStringResponder(500, "boom"))

	w := newWooUnderTest(t, wooConfig(0), transport)
	catalog, result, err := w.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(catalog) != 3 {
		t.Fatalf("records=%d, want 3", len(catalog))
	}
	failed := -1
	for i, rec := range catalog {
		if rec.URL == "http://shop.test/product-2/" {
			failed = i
			break
		}
	}
	if failed < 0 {
		t.Fatalf("record for failed detail page missing")
	}
	if desc := catalog[failed].Description; desc != "" {
		t.Fatalf("description = %q, want empty after detail failure", desc)
	}
	if len(result.FailedURLs) != 1 || result.FailedURLs[0] != "http://shop.test/product-2/" {
		t.Fatalf("failed urls = %v", result.FailedURLs)
	}
}

func TestWooCommerceListingFailureIsFatal(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/",
		httpmock.NewStringResponder(500, "down"))
	transport.RegisterResponder("GET", "http://shop.test",
		httpmock.NewStringResponder(500, "down"))

	w := newWooUnderTest(t, wooConfig(0), transport)
	catalog, _, err := w.Extract(context.Background())

	var lerr *ListingError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *ListingError, got %v", err)
	}
	if lerr.Stage != "listing fetch" {
		t.Fatalf("stage = %q", lerr.Stage)
	}
	if !strings.Contains(lerr.Error(), "http://shop.test/") {
		t.Fatalf("error should name the URL: %v", lerr)
	}
	if len(catalog) != 0 {
		t.Fatalf("records=%d, want 0", len(catalog))
	}
}

func TestWooCommerceMidCrawlListingFailureStopsPagination(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerShop(transport, 3, 2)
	transport.RegisterResponder("GET", "http://shop.test/page/2/",
		httpmock.NewStringResponder(500, "down"))

	w := newWooUnderTest(t, wooConfig(0), transport)
	catalog, result, err := w.Extract(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(catalog) != 2 {
		t.Fatalf("records=%d, want 2 from page 1 only", len(catalog))
	}
	found := false
	for _, u := range result.FailedURLs {
		if u == "http://shop.test/page/2/" {
			found = true
		}
	}
	if !found {
		t.Fatalf("failed urls should include page 2, got %v", result.FailedURLs)
	}
}
