// Package pipeline coordinates validation, de-duplication, normalization,
// and output writing for extracted records.
package pipeline

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/parser"
)

// ErrPipelineClosed is returned when Process is called after Close.
var ErrPipelineClosed = errors.New("pipeline: closed")

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(catalog models.Catalog) error
	Close() error
	Validate() error
}

// Pipeline accepts records in discovery order and hands the finished catalog
// to the writer on Close. Exactly one extraction flow feeds it at a time, so
// processing is synchronous and order-preserving.
type Pipeline struct {
	writer  OutputWriter
	symbol  string
	seen    *lru.Cache[string, struct{}]
	catalog models.Catalog
	metrics metrics
	closed  bool
}

// NewPipeline builds a pipeline with a bounded URL seen-set.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	size := cfg.DedupeMaxSize
	if size <= 0 {
		size = 100000
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:  writer,
		symbol:  cfg.CurrencySymbol,
		seen:    seen,
		metrics: newMetrics(),
	}, nil
}

// Process validates, de-duplicates by URL, normalizes, and appends one
// record. Invalid and duplicate records are dropped, not errors.
func (p *Pipeline) Process(rec *models.ProductRecord) error {
	if p.closed {
		return ErrPipelineClosed
	}

	if err := parser.ValidateRecord(rec); err != nil {
		p.metrics.addValidation("invalid_record")
		return nil
	}

	if _, dup := p.seen.Get(rec.URL); dup {
		p.metrics.addValidation("duplicate_url")
		return nil
	}
	p.seen.Add(rec.URL, struct{}{})

	rec.Category = parser.CleanText(rec.Category)
	rec.Name = parser.CleanText(rec.Name)
	rec.Price = parser.NormalizePrice(rec.Price, p.symbol)
	rec.Description = parser.CleanText(rec.Description)

	p.catalog = append(p.catalog, rec)
	p.metrics.incrementProcessed()
	return nil
}

// Len reports the number of retained records.
func (p *Pipeline) Len() int {
	return len(p.catalog)
}

// Catalog returns the retained records in discovery order.
func (p *Pipeline) Catalog() models.Catalog {
	return p.catalog
}

// Close hands the catalog to the writer and closes it. Further Process
// calls fail with ErrPipelineClosed.
func (p *Pipeline) Close() error {
	if p.closed {
		return ErrPipelineClosed
	}
	p.closed = true

	if err := p.writer.Write(p.catalog); err != nil {
		p.writer.Close()
		return err
	}
	return p.writer.Close()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.processed++
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}
	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
