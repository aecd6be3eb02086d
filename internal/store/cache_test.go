package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/id/uuid"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store"
	"github.com/farahad-khurami/ebay-scraper/internal/store/memory"
)

func TestSeenCache_ShortCircuitsRepeats(t *testing.T) {
	t.Parallel()

	inner := memory.New(uuid.NewGenerator())
	cached, err := store.NewSeenCache(inner, 128)
	require.NoError(t, err)

	ctx := context.Background()
	run, err := cached.CreateRun(ctx, "lego", time.Now().UTC(), 0)
	require.NoError(t, err)

	fields := scrape.ListingFields{ExternalID: "item42", Title: "Lego Castle 6080"}

	outcome, err := cached.Ingest(ctx, run.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, scrape.OutcomeInserted, outcome)

	outcome, err = cached.Ingest(ctx, run.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, scrape.OutcomeSkippedDuplicate, outcome)

	got, err := cached.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ItemsScraped)
}

func TestNormalizeListing_AppliesAllFieldRules(t *testing.T) {
	t.Parallel()

	listing := store.NormalizeListing("run-1", scrape.ListingFields{
		ExternalID:       "item42",
		Title:            "Lego Castle 6080",
		PriceText:        "£12,345.67",
		DateSoldText:     "Sold 3 Jan 2023",
		ShippingText:     "Free postage",
		ShippingLocation: "from United Kingdom",
		RatingText:       "4.5 out of 5 stars.",
		RatingCountText:  "38 product ratings",
	})

	assert.Equal(t, "run-1", listing.RunID)
	require.NotNil(t, listing.Price)
	assert.InDelta(t, 12345.67, *listing.Price, 1e-9)
	require.NotNil(t, listing.SoldDate)
	assert.Equal(t, time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC), *listing.SoldDate)
	require.NotNil(t, listing.ShippingPrice)
	assert.Zero(t, *listing.ShippingPrice)
	assert.Equal(t, "United Kingdom", listing.ShippingLocation)
	require.NotNil(t, listing.Rating)
	assert.InDelta(t, 4.5, *listing.Rating, 1e-9)
	require.NotNil(t, listing.RatingCount)
	assert.Equal(t, 38, *listing.RatingCount)
}
