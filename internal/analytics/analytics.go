// Package analytics reduces a user's receipts into grouped spending totals.
package analytics

import (
	"github.com/googleinterns/receipt-roundup-sub000/internal/format"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// Report maps a display label to the summed spending for that group.
// Store labels are capitalized ("Main Street Restaurant"); category labels
// stay lowercase. Maps are freshly allocated per call and never shared.
type Report struct {
	StoreTotals    map[string]float64 `json:"storeTotals"`
	CategoryTotals map[string]float64 `json:"categoryTotals"`
}

// NewReport aggregates the given receipts in a single pass. Records with a
// missing store or missing price contribute nothing to the store totals, and
// records with a missing price or no categories contribute nothing to the
// category totals; a corrupt record never aborts the whole report. Sums are
// plain float64 accumulation with no rounding.
func NewReport(receipts []receipt.Receipt) Report {
	report := Report{
		StoreTotals:    make(map[string]float64),
		CategoryTotals: make(map[string]float64),
	}

	for _, r := range receipts {
		report.addStore(r)
		report.addCategories(r)
	}

	return report
}

// addStore merges the receipt into the store totals keyed by the capitalized
// store name, so differently-cased inputs ("Walmart", "WALMART") land in one
// group.
func (rp *Report) addStore(r receipt.Receipt) {
	if r.Store == "" || r.Price == nil {
		return
	}

	key := format.CapitalizeWords(r.Store)
	rp.StoreTotals[key] += *r.Price
}

func (rp *Report) addCategories(r receipt.Receipt) {
	if r.Price == nil {
		return
	}

	for _, c := range r.Categories {
		key := format.Sanitize(c)
		if key == "" {
			continue
		}
		rp.CategoryTotals[key] += *r.Price
	}
}
