// Package models defines data structures for the catalog extractor.
package models

import (
	"sort"
	"time"
)

// ProductRecord is the canonical catalog item shared by all platforms.
type ProductRecord struct {
	Category    string    `csv:"category" json:"category"`
	Name        string    `csv:"name" json:"name"`
	Price       string    `csv:"price" json:"price"`
	URL         string    `csv:"url" json:"url"`
	Image       string    `csv:"image" json:"image"`
	Description string    `csv:"description" json:"description"`
	ScrapedAt   time.Time `csv:"scraped_at" json:"scraped_at"`
}

// Catalog is the ordered record set for one run. Insertion order follows
// scrape order and determines row order in the workbook.
type Catalog []*ProductRecord

// ExtractResult holds the overall result of an extraction run.
type ExtractResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	SkippedCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RequestCount int
	PageCount    int
}

// CategoryCount is one row of the derived category summary.
type CategoryCount struct {
	Category string
	Count    int
}

// Summarize derives the category -> item count table from a catalog,
// ordered by count descending, then label ascending. Records without a
// category are grouped under an empty label.
func Summarize(catalog Catalog) []CategoryCount {
	counts := make(map[string]int)
	for _, rec := range catalog {
		if rec == nil {
			continue
		}
		counts[rec.Category]++
	}

	summary := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		summary = append(summary, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Count != summary[j].Count {
			return summary[i].Count > summary[j].Count
		}
		return summary[i].Category < summary[j].Category
	})
	return summary
}
