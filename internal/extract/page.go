package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/farahad-khurami/ebay-scraper/internal/normalize"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// Page is one parsed search-results page.
type Page struct {
	TotalResults int
	Items        []scrape.ListingFields
	HasNext      bool
	NextURL      string
}

// PageParser parses rendered results markup using an injected selector set.
type PageParser struct {
	sel Selectors
}

// NewPageParser returns a parser bound to the given selectors.
func NewPageParser(sel Selectors) *PageParser {
	return &PageParser{sel: sel}
}

// Parse extracts the result count, the raw item records in DOM order, and
// the presence of a next-page control from one page of markup.
func (p *PageParser) Parse(html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse page markup: %w", err)
	}

	page := Page{
		TotalResults: p.totalResults(doc),
	}

	doc.Find(p.sel.Item).Each(func(_ int, s *goquery.Selection) {
		page.Items = append(page.Items, p.item(s))
	})

	next := doc.Find(p.sel.NextButton).First()
	if next.Length() > 0 {
		page.HasNext = true
		page.NextURL, _ = next.Attr("href")
	}
	return page, nil
}

func (p *PageParser) totalResults(doc *goquery.Document) int {
	if text := strings.TrimSpace(doc.Find(p.sel.ResultsCount).First().Text()); text != "" {
		if total := normalize.TotalResults(text); total > 0 {
			return total
		}
	}
	// Fallback: scan the whole page for an "N results" phrase.
	return normalize.TotalResults(doc.Text())
}

func (p *PageParser) item(s *goquery.Selection) scrape.ListingFields {
	shipping := p.text(s, p.sel.ShippingCost)
	if shipping == "" {
		shipping = p.text(s, p.sel.ShippingCostAlt)
	}
	id, _ := s.Attr("id")
	return scrape.ListingFields{
		ExternalID:       id,
		URL:              p.attr(s, p.sel.ItemURL, "href"),
		ImageURL:         p.attr(s, p.sel.ImageURL, "src"),
		Title:            p.text(s, p.sel.Title),
		Condition:        p.text(s, p.sel.Condition),
		DateSoldText:     p.text(s, p.sel.DateSold),
		PriceText:        p.text(s, p.sel.Price),
		ShippingText:     shipping,
		ShippingLocation: p.text(s, p.sel.ShippingLocation),
		BestOfferText:    p.text(s, p.sel.BestOffer),
		SellerInfoText:   p.text(s, p.sel.SellerInfo),
		RatingText:       p.text(s, p.sel.Rating),
		RatingCountText:  p.text(s, p.sel.RatingCount),
	}
}

func (p *PageParser) text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func (p *PageParser) attr(s *goquery.Selection, selector, name string) string {
	v, _ := s.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}
