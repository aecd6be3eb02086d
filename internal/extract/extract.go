// Package extract turns rendered search-results markup into raw listing
// field records. It is purely structural: field text passes through as-is
// and normalization happens at the store boundary.
package extract

import (
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// sentinelTitle is the placeholder the marketplace inserts for promotional
// slots that are not real listings.
const sentinelTitle = "Shop on eBay"

// Extractor validates one raw page-item record.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() Extractor {
	return Extractor{}
}

// Extract returns the record unchanged and true when it represents a real
// listing. Records without an external id, and promotional placeholder
// slots, are rejected.
func (Extractor) Extract(raw scrape.ListingFields) (scrape.ListingFields, bool) {
	if raw.ExternalID == "" {
		return scrape.ListingFields{}, false
	}
	if raw.Title == sentinelTitle {
		return scrape.ListingFields{}, false
	}
	return raw, true
}
