package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/fetch"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/parser"
)

// Generic extracts a catalog from an arbitrary listing page described by a
// selector set. Exactly one fetch, no pagination, no detail-page visits, so
// descriptions are always empty.
type Generic struct {
	cfg       *config.Config
	selectors config.Selectors
	client    *fetch.Client
	metrics   *Metrics
	base      *url.URL
}

// NewGeneric builds the selector-driven strategy for cfg.TargetURL.
func NewGeneric(cfg *config.Config, metrics *Metrics) (*Generic, error) {
	base, err := parseTarget(cfg.TargetURL)
	if err != nil {
		return nil, err
	}
	return &Generic{
		cfg:       cfg,
		selectors: cfg.Selectors,
		client:    fetch.NewClient(cfg, metrics),
		metrics:   metrics,
		base:      base,
	}, nil
}

// Client exposes the HTTP client for transport injection in tests.
func (g *Generic) Client() *fetch.Client {
	return g.client
}

// Extract fetches the listing once and applies the selector set to each
// product card, scoped to the card node. Cards without a name match are
// dropped; missing optional fields yield empty values.
func (g *Generic) Extract(ctx context.Context) (models.Catalog, *models.ExtractResult, error) {
	result := newResult()
	defer func() { result.EndTime = time.Now() }()

	result.RequestCount++
	doc, err := g.client.Document(ctx, g.cfg.TargetURL)
	if err != nil {
		return nil, result, &ListingError{Stage: "listing fetch", URL: g.cfg.TargetURL, Err: err}
	}
	result.PageCount++
	g.metrics.IncPages()

	var catalog models.Catalog
	doc.Find(g.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		rec := g.extractCard(card, result)
		if rec == nil {
			return
		}
		catalog = append(catalog, rec)
		g.metrics.IncItems()
	})
	return catalog, result, nil
}

func (g *Generic) extractCard(card *goquery.Selection, result *models.ExtractResult) *models.ProductRecord {
	name := parser.CleanText(card.Find(g.selectors.Name).First().Text())
	if name == "" {
		result.SkippedCount++
		g.metrics.IncSkipped()
		slog.Debug("card skipped",
			slog.Any("error", &SelectorMiss{Selector: g.selectors.Name, URL: g.cfg.TargetURL}),
		)
		return nil
	}

	price := parser.CleanText(card.Find(g.selectors.Price).First().Text())

	category := ""
	if g.selectors.Category != "" {
		category = parser.CleanText(card.Find(g.selectors.Category).First().Text())
	}

	image := ""
	if g.selectors.Image != "" {
		src, _ := card.Find(g.selectors.Image).First().Attr("src")
		image = resolveURL(g.base, src)
	}

	productURL := g.cfg.TargetURL
	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		if resolved := resolveURL(g.base, href); resolved != "" {
			productURL = resolved
		}
	}

	return &models.ProductRecord{
		Category:  category,
		Name:      name,
		Price:     price,
		URL:       productURL,
		Image:     image,
		ScrapedAt: time.Now(),
	}
}
