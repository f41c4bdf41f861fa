// Package query builds validated filter criteria from the raw string fields
// of the receipt search form.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/googleinterns/receipt-roundup-sub000/internal/format"
)

// Layout for the long-form dates submitted by the search form,
// e.g. "June 1, 2020". Month name matching is case-insensitive, so
// sanitized (lowercased) input parses fine.
const dateLayout = "January 2, 2006"

// Milliseconds from local midnight to 23:59:59.999 of the same day.
const millisToEndOfDay = 24*60*60*1000 - 1

var (
	// ErrDateRange indicates a date-range string that could not be split
	// into two halves or whose halves could not be parsed as dates.
	ErrDateRange = errors.New("invalid date range")

	// ErrInvalidPriceFormat indicates a price bound that is not a valid number.
	ErrInvalidPriceFormat = errors.New("invalid price format")

	// ErrMissingField indicates a required filter field that was entirely
	// absent from the request, as opposed to present but empty.
	ErrMissingField = errors.New("missing required field")
)

// Criteria is the validated, immutable filter specification derived from the
// search form. An empty Categories slice means "any category" and an empty
// Store means "any store"; the timestamp and price bounds are inclusive.
type Criteria struct {
	Location       *time.Location
	Categories     []string
	StartTimestamp int64
	EndTimestamp   int64
	Store          string
	MinPrice       float64
	MaxPrice       float64
}

// New builds a Criteria from the six raw search-form fields.
//
// An unknown or empty timezone ID silently falls back to UTC. The date range
// must contain two "-"-separated long-form dates, parsed as calendar days in
// the resolved timezone; the end timestamp covers the entire end day. Price
// bounds are parsed as plain numbers with no rounding and no negativity
// check; a nil pointer means the field was absent from the request. MinPrice
// and MaxPrice are validated independently, so inverted bounds pass through
// and simply match nothing downstream.
func New(timeZoneID, category, dateRange, store string, minPrice, maxPrice *string) (Criteria, error) {
	loc := resolveLocation(timeZoneID)

	var categories []string
	if c := format.Sanitize(category); c != "" {
		categories = []string{c}
	}

	start, end, err := parseDateRange(dateRange, loc)
	if err != nil {
		return Criteria{}, err
	}

	min, err := parsePriceBound("minPrice", minPrice)
	if err != nil {
		return Criteria{}, err
	}
	max, err := parsePriceBound("maxPrice", maxPrice)
	if err != nil {
		return Criteria{}, err
	}

	return Criteria{
		Location:       loc,
		Categories:     categories,
		StartTimestamp: start,
		EndTimestamp:   end,
		Store:          format.Sanitize(store),
		MinPrice:       min,
		MaxPrice:       max,
	}, nil
}

func resolveLocation(timeZoneID string) *time.Location {
	if timeZoneID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timeZoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDateRange(dateRange string, loc *time.Location) (start, end int64, err error) {
	halves := strings.SplitN(dateRange, "-", 2)
	if len(halves) != 2 {
		return 0, 0, fmt.Errorf("%w: %q is not a two-sided range", ErrDateRange, dateRange)
	}

	startDate, err := parseDate(halves[0], loc)
	if err != nil {
		return 0, 0, err
	}
	endDate, err := parseDate(halves[1], loc)
	if err != nil {
		return 0, 0, err
	}

	return startDate.UnixMilli(), endDate.UnixMilli() + millisToEndOfDay, nil
}

// parseDate parses a long-form date phrase at local midnight in loc.
func parseDate(phrase string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, format.Sanitize(phrase), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q could not be parsed as a date", ErrDateRange, phrase)
	}
	return d, nil
}

func parsePriceBound(field string, raw *string) (float64, error) {
	if raw == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}

	price, err := strconv.ParseFloat(format.Sanitize(*raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidPriceFormat, field, *raw)
	}

	return price, nil
}
