// Package scraper implements the three platform extraction strategies and
// the engine that drives them.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/pipeline"
)

// Extractor is the shared contract implemented by all platform strategies.
// An extractor is single-use: construct one per run.
type Extractor interface {
	Extract(ctx context.Context) (models.Catalog, *models.ExtractResult, error)
}

// New selects the strategy for the configured platform.
func New(cfg *config.Config, metrics *Metrics) (Extractor, error) {
	switch cfg.Platform {
	case config.PlatformWooCommerce:
		return NewWooCommerce(cfg, metrics)
	case config.PlatformShopify:
		return NewShopify(cfg, metrics)
	case config.PlatformGeneric:
		return NewGeneric(cfg, metrics)
	default:
		return nil, fmt.Errorf("no extractor for platform %q", cfg.Platform)
	}
}

// Run drives one extraction and streams the catalog through the pipeline in
// discovery order.
func Run(ctx context.Context, ext Extractor, p *pipeline.Pipeline) (*models.ExtractResult, error) {
	catalog, result, err := ext.Extract(ctx)
	if err != nil {
		return result, err
	}
	for _, rec := range catalog {
		if err := p.Process(rec); err != nil {
			return result, fmt.Errorf("pipeline process: %w", err)
		}
	}
	if result != nil {
		result.TotalCount = p.Len()
	}
	return result, nil
}

func newResult() *models.ExtractResult {
	return &models.ExtractResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func parseTarget(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse target url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("target url must include a host")
	}
	return parsed, nil
}
