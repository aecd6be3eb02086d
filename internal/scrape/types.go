// Package scrape defines core types shared across subsystems.
package scrape

import (
	"time"
)

// SearchRun represents one crawl session for a single query term.
type SearchRun struct {
	ID            string    `json:"run_id"`
	Query         string    `json:"query"`
	StartedAt     time.Time `json:"started_at"`
	ExpectedTotal int       `json:"expected_total"`
	ItemsScraped  int       `json:"items_scraped"`
	MaxItems      int       `json:"max_items,omitempty"`
}

// Seller is a marketplace seller, keyed by username.
type Seller struct {
	ID              int64    `json:"seller_id"`
	Username        string   `json:"username"`
	FeedbackScore   *int     `json:"feedback_score,omitempty"`
	FeedbackPercent *float64 `json:"feedback_percent,omitempty"`
}

// Listing is one sold item record as persisted.
type Listing struct {
	ID               int64      `json:"item_id"`
	ExternalID       string     `json:"external_id"`
	RunID            string     `json:"run_id"`
	SellerID         *int64     `json:"seller_id,omitempty"`
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	ImageURL         string     `json:"image_url"`
	Condition        string     `json:"condition"`
	SoldDate         *time.Time `json:"sold_date,omitempty"`
	Price            *float64   `json:"price,omitempty"`
	ShippingPrice    *float64   `json:"shipping_price,omitempty"`
	ShippingLocation string     `json:"shipping_location"`
	BestOffer        string     `json:"best_offer"`
	Rating           *float64   `json:"rating,omitempty"`
	RatingCount      *int       `json:"rating_count,omitempty"`
}

// ListingFields is the raw text bag extracted from one page item.
// Empty strings mean the field was absent on the page; normalization
// into typed values happens at the store boundary.
type ListingFields struct {
	ExternalID       string
	URL              string
	ImageURL         string
	Title            string
	Condition        string
	DateSoldText     string
	PriceText        string
	ShippingText     string
	ShippingLocation string
	BestOfferText    string
	SellerInfoText   string
	RatingText       string
	RatingCountText  string
}

// IngestOutcome reports what the store did with one listing.
type IngestOutcome int

// Ingest outcomes.
const (
	OutcomeInserted IngestOutcome = iota
	OutcomeSkippedDuplicate
)

// String returns a stable label for logs and metrics.
func (o IngestOutcome) String() string {
	if o == OutcomeSkippedDuplicate {
		return "skipped_duplicate"
	}
	return "inserted"
}

// FetchStatus classifies the result of one page navigation.
type FetchStatus int

// Fetch status variants. The controller's retry/abort logic is a pure
// function of these, independent of the fetch technology's own error
// signaling.
const (
	FetchOK FetchStatus = iota
	FetchTimeout
	FetchFatal
)

// FetchResult is the outcome of a single fetch or navigation operation.
type FetchResult struct {
	Status FetchStatus
	URL    string
	HTML   string
	Err    error
}

// ListingEvent is published for each newly inserted listing.
type ListingEvent struct {
	RunID      string     `json:"run_id"`
	Query      string     `json:"query"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	Price      *float64   `json:"price,omitempty"`
	SoldDate   *time.Time `json:"sold_date,omitempty"`
	IngestedAt time.Time  `json:"ingested_at"`
}
