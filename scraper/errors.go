package scraper

import (
	"fmt"
)

// SelectorMiss indicates an expected field was absent from a document.
// Misses on optional fields are absorbed into empty values; misses on
// required fields drop the single record.
type SelectorMiss struct {
	Selector string
	URL      string
}

func (e *SelectorMiss) Error() string {
	return fmt.Sprintf("selector %q matched nothing at %s", e.Selector, e.URL)
}

// ListingError marks a listing or sitemap scope failure, which is fatal for
// the run (per-item failures are absorbed instead).
type ListingError struct {
	Stage string // "listing fetch", "sitemap fetch", ...
	URL   string
	Err   error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
