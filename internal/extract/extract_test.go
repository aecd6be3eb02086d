package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/extract"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

func TestExtractor_AcceptsCompleteRecord(t *testing.T) {
	t.Parallel()

	raw := scrape.ListingFields{
		ExternalID: "item123456",
		Title:      "Vintage Camera",
		PriceText:  "£45.00",
	}

	got, ok := extract.NewExtractor().Extract(raw)
	require.True(t, ok)
	assert.Equal(t, raw, got)
}

func TestExtractor_RejectsMissingID(t *testing.T) {
	t.Parallel()

	_, ok := extract.NewExtractor().Extract(scrape.ListingFields{Title: "Vintage Camera"})
	assert.False(t, ok)
}

func TestExtractor_RejectsPromotionalPlaceholder(t *testing.T) {
	t.Parallel()

	_, ok := extract.NewExtractor().Extract(scrape.ListingFields{
		ExternalID: "item999",
		Title:      "Shop on eBay",
	})
	assert.False(t, ok)
}

const resultsPage = `<!DOCTYPE html>
<html><body>
<h1 class="srp-controls__count-heading"><span class="BOLD">2,417</span> results for lego</h1>
<ul class="srp-results">
  <li class="s-item" id="item1a2b3c">
    <div class="s-item__image"><a href="https://www.example.com/itm/1a2b3c"><img src="https://img.example.com/1a2b3c.jpg"/></a></div>
    <div class="s-item__title"><span>Lego Castle 6080</span></div>
    <span class="SECONDARY_INFO">Pre-owned</span>
    <span class="s-item__caption--signal POSITIVE"><span>Sold 3 Jan 2023</span></span>
    <span class="s-item__price"><span class="POSITIVE">£120.00</span></span>
    <span class="s-item__shipping s-item__logisticsCost"><span>+ £3.99 postage</span></span>
    <span class="s-item__location s-item__itemLocation"><span>from United Kingdom</span></span>
    <span class="s-item__seller-info-text">brickseller (1,234) 99.5%</span>
    <div class="x-star-rating"><span class="clipped">4.5 out of 5 stars.</span></div>
    <span class="s-item__reviews-count"><span>38 product ratings</span></span>
  </li>
  <li class="s-item" id="item9z8y7x">
    <div class="s-item__image"><a href="https://www.example.com/itm/9z8y7x"><img src="https://img.example.com/9z8y7x.jpg"/></a></div>
    <div class="s-item__title"><span>Shop on eBay</span></div>
    <span class="s-item__shipping">Free postage</span>
  </li>
</ul>
<a class="pagination__next" href="https://www.example.com/sch?_pgn=2">Next</a>
</body></html>`

func TestPageParser_Parse(t *testing.T) {
	t.Parallel()

	page, err := extract.NewPageParser(extract.DefaultSelectors()).Parse(resultsPage)
	require.NoError(t, err)

	assert.Equal(t, 2417, page.TotalResults)
	assert.True(t, page.HasNext)
	assert.Equal(t, "https://www.example.com/sch?_pgn=2", page.NextURL)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "item1a2b3c", first.ExternalID)
	assert.Equal(t, "https://www.example.com/itm/1a2b3c", first.URL)
	assert.Equal(t, "https://img.example.com/1a2b3c.jpg", first.ImageURL)
	assert.Equal(t, "Lego Castle 6080", first.Title)
	assert.Equal(t, "Pre-owned", first.Condition)
	assert.Equal(t, "Sold 3 Jan 2023", first.DateSoldText)
	assert.Equal(t, "£120.00", first.PriceText)
	assert.Equal(t, "+ £3.99 postage", first.ShippingText)
	assert.Equal(t, "from United Kingdom", first.ShippingLocation)
	assert.Equal(t, "brickseller (1,234) 99.5%", first.SellerInfoText)
	assert.Equal(t, "4.5 out of 5 stars.", first.RatingText)
	assert.Equal(t, "38 product ratings", first.RatingCountText)

	// Placeholder slot still parses; the Extractor is what rejects it.
	second := page.Items[1]
	assert.Equal(t, "item9z8y7x", second.ExternalID)
	assert.Equal(t, "Shop on eBay", second.Title)
	assert.Equal(t, "Free postage", second.ShippingText, "falls back to the alternate shipping selector")
}

func TestPageParser_NoNextControl(t *testing.T) {
	t.Parallel()

	page, err := extract.NewPageParser(extract.DefaultSelectors()).Parse(
		`<html><body><h1 class="srp-controls__count-heading"><span class="BOLD">3</span></h1></body></html>`)
	require.NoError(t, err)

	assert.False(t, page.HasNext)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.TotalResults)
}

func TestPageParser_TotalResultsFallback(t *testing.T) {
	t.Parallel()

	page, err := extract.NewPageParser(extract.DefaultSelectors()).Parse(
		`<html><body><p>About 12,345 results for this search</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, 12345, page.TotalResults)
}
