// Package normalize converts raw marketplace text fields into typed values.
// Every function accepts possibly-absent input (the empty string) and returns
// the zero value or nil on absence or malformed input; nothing here errors.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonNumericRe  = regexp.MustCompile(`[^0-9.]`)
	soldDateRe    = regexp.MustCompile(`Sold\s+(\d{1,2})\s+([A-Za-z]{3})\s+(\d{4})`)
	sellerInfoRe  = regexp.MustCompile(`^\s*(.+?)\s*\((\d{1,3}(?:,\d{3})*|\d+)\)\s*(\d+(?:\.\d+)?)%\s*$`)
	decimalRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	integerRe     = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
	totalResultRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*)\s+results`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Price strips every character that is not a digit or a decimal point and
// parses the remainder as a float. "£12,345.67" becomes 12345.67.
func Price(text string) *float64 {
	stripped := nonNumericRe.ReplaceAllString(text, "")
	if stripped == "" {
		return nil
	}
	v, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return nil
	}
	return &v
}

// SoldDate parses "Sold <day> <3-letter-month> <4-digit-year>" into a calendar
// date. Returns nil when the pattern does not match or the date does not exist
// on the calendar (e.g. 31 Feb).
func SoldDate(text string) *time.Time {
	m := soldDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return nil
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 Feb -> 3 Mar); reject those.
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return nil
	}
	return &d
}

// SellerInfo parses "<name> (<feedback score>) <feedback percent>%".
// The score may carry thousands commas. On any mismatch all three results
// are zero/nil.
func SellerInfo(text string) (name string, score *int, percent *float64) {
	m := sellerInfoRe.FindStringSubmatch(text)
	if m == nil {
		return "", nil, nil
	}
	s, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return "", nil, nil
	}
	p, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return "", nil, nil
	}
	return strings.TrimSpace(m[1]), &s, &p
}

// FreePostage is the literal the marketplace uses for zero-cost shipping.
const FreePostage = "Free postage"

// ShippingCost cleans a raw shipping text into a bare cost string: currency
// symbols and a leading "+" are stripped, the trailing word "postage" is
// removed, and the result is trimmed. The free-postage literal short-circuits
// to "0". The numeric pass is ShippingPrice.
func ShippingCost(text string) string {
	s := strings.TrimSpace(text)
	if s == FreePostage {
		return "0"
	}
	s = strings.TrimPrefix(s, "+")
	for _, sym := range []string{"£", "$", "€"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "postage")
	return strings.TrimSpace(s)
}

// ShippingPrice converts raw shipping text into a numeric cost: the cleaned
// cost string goes through the same float extraction rule as Price, with
// "Free postage" ending up at 0.0. Nil means unknown.
func ShippingPrice(text string) *float64 {
	cleaned := ShippingCost(text)
	if cleaned == "" {
		return nil
	}
	return Price(cleaned)
}

// ShippingLocation strips a leading "from" token and trims.
func ShippingLocation(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "from ")
	return strings.TrimSpace(s)
}

// Rating extracts the first decimal-number substring, e.g. "4.5 out of 5
// stars" becomes 4.5. Nil when no number is present.
func Rating(text string) *float64 {
	m := decimalRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// RatingCount extracts the first integer substring, tolerating thousands
// commas, e.g. "1,238 product ratings" becomes 1238.
func RatingCount(text string) *int {
	m := integerRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

// TotalResults parses a results-count figure such as "1,400,000" or the
// fallback phrase "1,400,000 results". Zero when absent.
func TotalResults(text string) int {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	if m := totalResultRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return v
}
