package extract

// Selectors locates the result-list fields within the marketplace markup.
// It is injected so the extraction logic stays decoupled from any specific
// markup schema and can be swapped or mocked in tests.
type Selectors struct {
	// Page-level selectors.
	ResultsCount string
	NextButton   string

	// Item selectors, relative to one Item node. ItemURL and ImageURL
	// resolve attributes (href/src); the rest resolve text content.
	Item             string
	ItemURL          string
	ImageURL         string
	Title            string
	Condition        string
	DateSold         string
	Price            string
	ShippingCost     string
	ShippingCostAlt  string
	ShippingLocation string
	BestOffer        string
	SellerInfo       string
	Rating           string
	RatingCount      string
}

// DefaultSelectors returns the selector set for the marketplace's current
// search-results markup.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsCount: "h1.srp-controls__count-heading span.BOLD",
		NextButton:   "a.pagination__next",

		Item:             "li.s-item",
		ItemURL:          "div.s-item__image a",
		ImageURL:         "div.s-item__image img",
		Title:            "div.s-item__title span",
		Condition:        "span.SECONDARY_INFO",
		DateSold:         "span.s-item__caption--signal.POSITIVE span",
		Price:            "span.s-item__price span.POSITIVE",
		ShippingCost:     ".s-item__shipping.s-item__logisticsCost span",
		ShippingCostAlt:  "span.s-item__shipping",
		ShippingLocation: ".s-item__location.s-item__itemLocation span",
		BestOffer:        "span.s-item__dynamic.s-item__formatBestOfferEnabled",
		SellerInfo:       "span.s-item__seller-info-text",
		Rating:           "div.x-star-rating span.clipped",
		RatingCount:      "span.s-item__reviews-count span",
	}
}
