// Package store holds persistence helpers shared by the concrete
// store implementations.
package store

import (
	"github.com/farahad-khurami/ebay-scraper/internal/normalize"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// SellerObservation is one sighting of a seller, already normalized.
type SellerObservation struct {
	Username        string
	FeedbackScore   *int
	FeedbackPercent *float64
}

// NormalizeSeller parses the raw seller-info text into an observation.
// Username is empty when the text does not match the expected shape.
func NormalizeSeller(fields scrape.ListingFields) SellerObservation {
	name, score, percent := normalize.SellerInfo(fields.SellerInfoText)
	return SellerObservation{
		Username:        name,
		FeedbackScore:   score,
		FeedbackPercent: percent,
	}
}

// NormalizeListing converts the raw field bag into a typed listing owned by
// runID. Fields that fail to parse become nil; the listing is stored anyway.
func NormalizeListing(runID string, fields scrape.ListingFields) scrape.Listing {
	return scrape.Listing{
		ExternalID:       fields.ExternalID,
		RunID:            runID,
		Title:            fields.Title,
		URL:              fields.URL,
		ImageURL:         fields.ImageURL,
		Condition:        fields.Condition,
		SoldDate:         normalize.SoldDate(fields.DateSoldText),
		Price:            normalize.Price(fields.PriceText),
		ShippingPrice:    normalize.ShippingPrice(fields.ShippingText),
		ShippingLocation: normalize.ShippingLocation(fields.ShippingLocation),
		BestOffer:        fields.BestOfferText,
		Rating:           normalize.Rating(fields.RatingText),
		RatingCount:      normalize.RatingCount(fields.RatingCountText),
	}
}
