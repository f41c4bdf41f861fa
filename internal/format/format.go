// Package format provides deterministic canonicalization of user-supplied
// receipt fields: free-text sanitization, price parsing and rounding, and
// transaction timestamp validation. Every entry point that accepts raw form
// input goes through this package before anything is stored or compared.
package format

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrInvalidPrice indicates a price string that could not be parsed or
	// that parsed to a negative value.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidDate indicates a transaction date that is not a millisecond
	// timestamp or that lies in the future.
	ErrInvalidDate = errors.New("invalid date")
)

// Sanitize converts the input to all lowercase with exactly one space
// separating words and no leading or trailing whitespace.
func Sanitize(input string) string {
	return strings.ToLower(strings.Join(strings.Fields(input), " "))
}

// SanitizeCategories sanitizes each category and removes duplicates,
// preserving the order in which distinct categories first appear.
func SanitizeCategories(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	categories := make([]string, 0, len(raw))

	for _, c := range raw {
		s := Sanitize(c)
		if seen[s] {
			continue
		}
		seen[s] = true
		categories = append(categories, s)
	}

	return categories
}

// ParseAndRoundPrice converts a price string into a non-negative amount
// rounded to 2 decimal places, using half-up rounding on the cent value.
func ParseAndRoundPrice(raw string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q could not be parsed", ErrInvalidPrice, raw)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrInvalidPrice)
	}

	return math.Floor(parsed*100.0+0.5) / 100.0, nil
}

// ParseTimestamp parses a millisecond epoch timestamp and verifies that it is
// not after the supplied reference time. The reference time is always passed
// in by the caller so the check stays deterministic.
func ParseTimestamp(raw string, now time.Time) (int64, error) {
	timestamp, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: transaction date must be a millisecond timestamp", ErrInvalidDate)
	}

	if timestamp > now.UnixMilli() {
		return 0, fmt.Errorf("%w: transaction date must be in the past", ErrInvalidDate)
	}

	return timestamp, nil
}

// CapitalizeWords uppercases the first letter of every whitespace-separated
// word and lowercases the rest, rejoining with single spaces. Used for the
// display grouping of store names; Sanitize is the one used for matching.
func CapitalizeWords(input string) string {
	words := strings.Fields(input)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
