// Package fetcher provides the marketplace page-fetching sessions consumed
// by the crawl controller, plus URL construction shared between them.
package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
)

// DefaultBaseURL is the marketplace entry point.
const DefaultBaseURL = "https://www.ebay.co.uk"

// Search URL parameters recognized by the marketplace.
const (
	paramQuery      = "_nkw"
	paramPerPage    = "_ipg"
	paramPage       = "_pgn"
	paramSoldOnly   = "LH_Sold"
	paramCompleted  = "LH_Complete"
	defaultPerPage  = "240"
	soldFilterToken = "LH_Sold=1"
)

// SearchURL builds the search-results URL for page n of the sold-items view.
func SearchURL(baseURL, query string, page int) string {
	q := url.Values{}
	q.Set(paramQuery, query)
	q.Set(paramPerPage, defaultPerPage)
	q.Set(paramSoldOnly, "1")
	q.Set(paramCompleted, "1")
	if page > 1 {
		q.Set(paramPage, strconv.Itoa(page))
	}
	return fmt.Sprintf("%s/sch/i.html?%s", baseURL, q.Encode())
}

// AppendSoldFilter adds the sold-items parameter to an arbitrary results URL.
func AppendSoldFilter(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		q := u.Query()
		q.Set(paramSoldOnly, "1")
		u.RawQuery = q.Encode()
		return u.String()
	}
	sep := "?"
	for _, r := range rawURL {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return rawURL + sep + soldFilterToken
}

// SoldFilterToken reports whether a link already targets the sold-items view.
func SoldFilterToken(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Query().Get(paramSoldOnly) == "1"
}
