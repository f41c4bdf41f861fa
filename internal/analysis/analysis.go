// Package analysis extracts structured receipt fields from an image: the
// raw text and any store logo and category labels come from a vision model,
// and the transaction date and total price are recovered from the raw text
// with the heuristics in this package.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/googleinterns/receipt-roundup-sub000/internal/format"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// Extraction is the raw output of the vision/categorization collaborator.
type Extraction struct {
	// RawText is the full text detected on the image, empty when none.
	RawText string

	// Store is the store name behind a detected logo, empty when none was
	// detected with enough confidence.
	Store string

	// CategoryPaths are classifier paths like "/Food & Drink/Restaurants".
	CategoryPaths []string
}

// TextExtractor runs OCR and text categorization on a receipt image.
type TextExtractor interface {
	Extract(ctx context.Context, imageBytes []byte) (Extraction, error)
}

// Analyzer combines the extractor with the date/price heuristics.
type Analyzer struct {
	extractor TextExtractor
}

// NewAnalyzer creates an Analyzer on top of the given extractor.
func NewAnalyzer(extractor TextExtractor) *Analyzer {
	return &Analyzer{extractor: extractor}
}

// Analyze extracts every field it can from the image. Only the extraction
// call itself can fail; missing fields in otherwise readable text simply
// stay nil. The caller supplies now so the two-digit-year correction is
// deterministic.
func (a *Analyzer) Analyze(ctx context.Context, imageBytes []byte, now time.Time) (receipt.AnalysisResults, error) {
	extraction, err := a.extractor.Extract(ctx, imageBytes)
	if err != nil {
		return receipt.AnalysisResults{}, fmt.Errorf("Analyze: extracting text: %w", err)
	}

	results := receipt.AnalysisResults{}

	if extraction.Store != "" {
		store := extraction.Store
		results.Store = &store
	}

	var categories []string
	for _, path := range extraction.CategoryPaths {
		categories = append(categories, flattenCategoryPath(path)...)
	}
	results.Categories = format.SanitizeCategories(categories)

	if extraction.RawText == "" {
		return results, nil
	}

	rawText := extraction.RawText
	results.RawText = &rawText
	results.Timestamp = findTimestamp(rawText, now)
	results.Price = findPrice(rawText)

	return results, nil
}
