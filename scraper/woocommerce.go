package scraper

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/fetch"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/parser"
)

// WooCommerce extracts a catalog from a WooCommerce shop listing: product
// cards from each listing page, descriptions from per-product detail pages,
// pagination by the platform's canonical next link.
type WooCommerce struct {
	cfg       *config.Config
	collector *colly.Collector
	client    *fetch.Client
	metrics   *Metrics

	handlersOnce sync.Once

	catalog models.Catalog
	result  *models.ExtractResult
	pages   int
}

// NewWooCommerce builds the WooCommerce strategy for cfg.TargetURL.
func NewWooCommerce(cfg *config.Config, metrics *Metrics) (*WooCommerce, error) {
	parsed, err := parseTarget(cfg.TargetURL)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, err
	}

	return &WooCommerce{
		cfg:       cfg,
		collector: collector,
		client:    fetch.NewClient(cfg, metrics),
		metrics:   metrics,
	}, nil
}

// Extract visits the listing from page 1, following next links until none
// remain or the configured page bound is reached.
func (w *WooCommerce) Extract(ctx context.Context) (models.Catalog, *models.ExtractResult, error) {
	w.result = newResult()
	w.configureHandlers(ctx)

	if err := w.collector.Visit(w.cfg.TargetURL); err != nil {
		w.result.EndTime = time.Now()
		return nil, w.result, &ListingError{Stage: "listing fetch", URL: w.cfg.TargetURL, Err: err}
	}
	w.collector.Wait()

	w.result.EndTime = time.Now()
	return w.catalog, w.result, nil
}

func (w *WooCommerce) configureHandlers(ctx context.Context) {
	w.handlersOnce.Do(func() {
		w.collector.OnRequest(func(r *colly.Request) {
			w.result.RequestCount++
			w.metrics.IncRequest("listing")
		})

		w.collector.OnResponse(func(r *colly.Response) {
			w.pages++
			w.result.PageCount++
			w.metrics.IncPages()
		})

		w.collector.OnError(func(r *colly.Response, err error) {
			w.result.ErrorCount++
			w.result.ErrorsByType["listing"]++
			pageURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			if pageURL != "" {
				w.result.FailedURLs = append(w.result.FailedURLs, pageURL)
			}
			w.metrics.IncError("listing")
			slog.Error("listing page failed, stopping pagination",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
		})

		w.collector.OnHTML("li.product", func(e *colly.HTMLElement) {
			rec := w.extractCard(ctx, e)
			if rec == nil {
				return
			}
			w.catalog = append(w.catalog, rec)
			w.metrics.IncItems()
		})

		// First anchor matching the canonical next-page pattern wins;
		// further matches resolve to the same URL and are skipped by the
		// collector's visited set.
		w.collector.OnHTML("ul.page-numbers a.next, nav.woocommerce-pagination a.next", func(e *colly.HTMLElement) {
			if w.cfg.MaxPages > 0 && w.pages >= w.cfg.MaxPages {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if err := e.Request.Visit(e.Attr("href")); err != nil &&
				err != colly.ErrAlreadyVisited {
				slog.Debug("next page visit failed",
					slog.String("url", e.Request.AbsoluteURL(e.Attr("href"))),
					slog.Any("error", err),
				)
			}
		})
	})
}

func (w *WooCommerce) extractCard(ctx context.Context, e *colly.HTMLElement) *models.ProductRecord {
	name := parser.CleanText(e.ChildText(".woocommerce-loop-product__title"))
	if name == "" {
		w.skipCard(&SelectorMiss{Selector: ".woocommerce-loop-product__title", URL: e.Request.URL.String()})
		return nil
	}

	href := e.ChildAttr("a[href]", "href")
	if href == "" {
		w.skipCard(&SelectorMiss{Selector: "a[href]", URL: e.Request.URL.String()})
		return nil
	}
	productURL := e.Request.AbsoluteURL(href)

	category := strings.TrimSpace(e.Attr("data-product_cat"))
	if category == "" {
		if classes := strings.Fields(e.Attr("class")); len(classes) > 0 {
			category = classes[0]
		}
	}

	record := &models.ProductRecord{
		Category:  category,
		Name:      name,
		Price:     parser.CleanText(e.ChildText("span.price")),
		URL:       productURL,
		Image:     e.Request.AbsoluteURL(e.ChildAttr("img[src]", "src")),
		ScrapedAt: time.Now(),
	}

	// Listing pages carry only excerpts; the full description lives on the
	// product page. A failed detail fetch keeps the record.
	description, err := w.fetchDescription(ctx, productURL)
	if err != nil {
		w.result.ErrorCount++
		w.result.ErrorsByType[fetch.ErrorKind(err)]++
		w.result.FailedURLs = append(w.result.FailedURLs, productURL)
		w.metrics.IncError(fetch.ErrorKind(err))
		slog.Warn("product detail fetch failed",
			slog.String("url", productURL),
			slog.Any("error", err),
		)
	}
	record.Description = description
	return record
}

func (w *WooCommerce) fetchDescription(ctx context.Context, productURL string) (string, error) {
	doc, err := w.client.Document(ctx, productURL)
	if err != nil {
		return "", err
	}
	sel := doc.Find("div.woocommerce-product-details__short-description")
	if sel.Length() == 0 {
		sel = doc.Find("div.woocommerce-Tabs-panel--description, #tab-description")
	}
	return parser.CleanText(sel.Text()), nil
}

func (w *WooCommerce) skipCard(miss *SelectorMiss) {
	w.result.SkippedCount++
	w.metrics.IncSkipped()
	slog.Debug("product card skipped", slog.Any("error", miss))
}
