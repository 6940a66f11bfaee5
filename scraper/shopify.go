package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/fetch"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/parser"
)

// Shopify extracts a catalog from a Shopify store. Product handles are
// discovered through the store's sitemap rather than the catalog JSON index,
// which many stores firewall; each handle is then resolved through the
// per-product JSON endpoint.
type Shopify struct {
	cfg     *config.Config
	client  *fetch.Client
	metrics *Metrics
	base    *url.URL
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapURLSet struct {
	URLs []sitemapRef `xml:"url"`
}

// shopifyProduct is the subset of the /products/<handle>.js payload the
// catalog needs. Variant prices are in minor units.
type shopifyProduct struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Variants    []struct {
		Price int64 `json:"price"`
	} `json:"variants"`
	Images []string `json:"images"`
}

// NewShopify builds the Shopify strategy for cfg.TargetURL (the store root).
func NewShopify(cfg *config.Config, metrics *Metrics) (*Shopify, error) {
	base, err := parseTarget(cfg.TargetURL)
	if err != nil {
		return nil, err
	}
	return &Shopify{
		cfg:     cfg,
		client:  fetch.NewClient(cfg, metrics),
		metrics: metrics,
		base:    base,
	}, nil
}

// Client exposes the HTTP client for transport injection in tests.
func (s *Shopify) Client() *fetch.Client {
	return s.client
}

// Extract discovers handles via the sitemap and fetches one JSON record per
// handle. Per-handle failures are skipped without retry; sitemap failures
// abort the run.
func (s *Shopify) Extract(ctx context.Context) (models.Catalog, *models.ExtractResult, error) {
	result := newResult()
	defer func() { result.EndTime = time.Now() }()

	handles, err := s.discoverHandles(ctx, result)
	if err != nil {
		return nil, result, err
	}

	var catalog models.Catalog
	for _, handle := range handles {
		if ctx.Err() != nil {
			return catalog, result, ctx.Err()
		}
		rec := s.fetchProduct(ctx, handle, result)
		if rec == nil {
			continue
		}
		catalog = append(catalog, rec)
		s.metrics.IncItems()
	}
	return catalog, result, nil
}

func (s *Shopify) discoverHandles(ctx context.Context, result *models.ExtractResult) ([]string, error) {
	sitemapURL := resolveURL(s.base, "/sitemap.xml")

	var index sitemapIndex
	result.RequestCount++
	if err := s.client.XML(ctx, sitemapURL, &index); err != nil {
		return nil, &ListingError{Stage: "sitemap fetch", URL: sitemapURL, Err: err}
	}

	var productMaps []string
	for _, ref := range index.Sitemaps {
		if strings.Contains(ref.Loc, "sitemap_products") {
			productMaps = append(productMaps, strings.TrimSpace(ref.Loc))
		}
	}

	var handles []string
	for _, sm := range productMaps {
		var set sitemapURLSet
		result.RequestCount++
		if err := s.client.XML(ctx, sm, &set); err != nil {
			return nil, &ListingError{Stage: "sitemap fetch", URL: sm, Err: err}
		}
		result.PageCount++
		s.metrics.IncPages()
		for _, ref := range set.URLs {
			loc, err := url.Parse(strings.TrimSpace(ref.Loc))
			if err != nil || !strings.Contains(loc.Path, "/products/") {
				continue
			}
			if handle := path.Base(loc.Path); handle != "" && handle != "." {
				handles = append(handles, handle)
			}
		}
	}
	return handles, nil
}

func (s *Shopify) fetchProduct(ctx context.Context, handle string, result *models.ExtractResult) *models.ProductRecord {
	endpoint := resolveURL(s.base, "/products/"+handle+".js")
	result.RequestCount++

	var product shopifyProduct
	if err := s.client.JSON(ctx, endpoint, &product); err != nil {
		result.SkippedCount++
		result.ErrorCount++
		result.ErrorsByType[fetch.ErrorKind(err)]++
		result.FailedURLs = append(result.FailedURLs, endpoint)
		s.metrics.IncSkipped()
		slog.Warn("product skipped",
			slog.String("handle", handle),
			slog.String("url", endpoint),
			slog.Any("error", err),
		)
		return nil
	}

	name := parser.CleanText(product.Title)
	if name == "" {
		result.SkippedCount++
		s.metrics.IncSkipped()
		slog.Debug("product without title skipped", slog.String("handle", handle))
		return nil
	}

	price := ""
	if len(product.Variants) > 0 {
		min := product.Variants[0].Price
		for _, v := range product.Variants[1:] {
			if v.Price < min {
				min = v.Price
			}
		}
		price = parser.FormatMinorUnits(min, s.cfg.CurrencySymbol)
	}

	image := ""
	if len(product.Images) > 0 {
		image = resolveURL(s.base, product.Images[0])
	}

	return &models.ProductRecord{
		Category:    parser.CleanText(product.Type),
		Name:        name,
		Price:       price,
		URL:         resolveURL(s.base, "/products/"+handle),
		Image:       image,
		Description: parser.StripTags(product.Description),
		ScrapedAt:   time.Now(),
	}
}
