package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Matches tokens in U.S. date format, e.g. 6/1/2020 or 06-01-20.
	dateRegex = regexp.MustCompile(`^\d?\d([/-])\d?\d([/-])\d{2}(\d{2})?$`)

	// Matches strings formatted as dollar prices.
	priceRegex = regexp.MustCompile(`^\$?\d+\.\d\d$`)

	// Matches tokens containing the word "total" with any capitalization.
	totalRegex = regexp.MustCompile(`(?i)total`)
)

// findTimestamp converts the first date-shaped token in the raw text to
// epoch milliseconds at UTC midnight. The first date on a receipt is assumed
// to be the transaction date, so when that token has an invalid month or day
// the whole scan yields nothing rather than falling through to a later date.
func findTimestamp(rawText string, now time.Time) *int64 {
	for _, token := range strings.Fields(rawText) {
		m := dateRegex.FindStringSubmatch(token)
		if m == nil || m[1] != m[2] {
			continue
		}

		if ts, ok := parseDateToken(token, m[1], now); ok {
			return &ts
		}
		return nil
	}
	return nil
}

// parseDateToken parses one M/D/YY or M/D/YYYY token at UTC midnight.
func parseDateToken(token, separator string, now time.Time) (int64, bool) {
	layout := "1" + separator + "2" + separator + "2006"

	// Two digits left after the last separator means a two-digit year.
	if strings.LastIndex(token, separator)+3 == len(token) {
		layout = "1" + separator + "2" + separator + "06"
	}

	date, err := time.Parse(layout, token)
	if err != nil {
		// Invalid month or day.
		return 0, false
	}

	// A receipt cannot be from the future; such a date really belongs to
	// the previous century.
	if date.After(now) {
		date = date.AddDate(-100, 0, 0)
	}

	return date.UnixMilli(), true
}

// findPrice searches the raw text for the transaction total. The first
// price-shaped token after the last "total" token wins; otherwise the
// largest price-shaped token is used. Returns nil when nothing price-shaped
// appears.
func findPrice(rawText string) *float64 {
	if p := findPriceAfterTotal(rawText); p != nil {
		return p
	}
	return findLargestPrice(rawText)
}

// findPriceAfterTotal walks the token stream once. Each "total" token starts
// a fresh capture, so the winning price is the one right after the last
// total, regardless of line breaks.
func findPriceAfterTotal(rawText string) *float64 {
	var price *float64

	afterTotal := false
	for _, token := range strings.Fields(rawText) {
		if totalRegex.MatchString(token) {
			afterTotal = true
			price = nil
			continue
		}
		if !afterTotal || price != nil {
			continue
		}
		if p, ok := parsePriceToken(token); ok {
			v := p
			price = &v
		}
	}

	return price
}

func findLargestPrice(rawText string) *float64 {
	var largest *float64

	for _, token := range strings.Fields(rawText) {
		p, ok := parsePriceToken(token)
		if !ok {
			continue
		}
		if largest == nil || p > *largest {
			v := p
			largest = &v
		}
	}

	return largest
}

func parsePriceToken(token string) (float64, bool) {
	if !priceRegex.MatchString(token) {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimPrefix(token, "$"), 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// flattenCategoryPath turns a classifier path into natural category labels,
// e.g. "/Food & Drink/Restaurants" becomes "Food", "Drink", "Restaurants".
func flattenCategoryPath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}

	var labels []string
	for _, segment := range strings.Split(trimmed, "/") {
		for _, label := range strings.Split(segment, " & ") {
			if label != "" {
				labels = append(labels, label)
			}
		}
	}

	return labels
}
