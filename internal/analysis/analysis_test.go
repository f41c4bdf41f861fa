package analysis

import (
	"context"
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC)

func TestFindTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		rawText string
		want    string // expected UTC date, empty when none
	}{
		{"slash date", "Walmart\n6/1/2020\nTOTAL $5.00", "2020-06-01"},
		{"dash date", "Walmart\n06-01-2020\n", "2020-06-01"},
		{"two digit year", "6/1/20 thanks", "2020-06-01"},
		{"two digit year in past century", "6/1/99", "1999-06-01"},
		{"future two digit year moved back", "8/1/20", "1920-08-01"},
		{"first date wins", "6/1/2020 then 7/4/2019", "2020-06-01"},
		{"mixed separators rejected", "6/1-2020", ""},
		{"invalid month yields nothing", "13/1/2020", ""},
		{"invalid first date blocks later dates", "13/45/2020 6/1/2020", ""},
		{"future four digit year moved back", "6/1/2030", "1930-06-01"},
		{"no date", "Walmart receipt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findTimestamp(tt.rawText, testNow)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("findTimestamp() = %d, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("findTimestamp() = nil, want %s", tt.want)
			}
			if gotDate := time.UnixMilli(*got).UTC().Format("2006-01-02"); gotDate != tt.want {
				t.Errorf("findTimestamp() = %s, want %s", gotDate, tt.want)
			}
		})
	}
}

func TestFindPrice(t *testing.T) {
	tests := []struct {
		name    string
		rawText string
		want    float64 // negative means expect nil
	}{
		{"price after total on same line", "Milk $3.49\nTOTAL $17.23\n", 17.23},
		{"price on line after total", "Items 2\nTotal\n$17.23", 17.23},
		{"total beats larger item", "Item $99.99\ntotal 17.23\n", 17.23},
		{"last total wins", "the sub total is $12.23 and the total is $12.77", 12.77},
		{"first price after total across lines", "TOTAL:\n\nitem 3.00\n20.00", 3.00},
		{"largest price fallback", "Milk 3.49\nBread 4.29\nEggs 2.99", 4.29},
		{"dollar sign optional", "TOTAL 17.23", 17.23},
		{"no prices", "thank you come again", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findPrice(tt.rawText)
			if tt.want < 0 {
				if got != nil {
					t.Fatalf("findPrice() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("findPrice() = nil, want %v", tt.want)
			}
			if math.Abs(*got-tt.want) > 1e-9 {
				t.Errorf("findPrice() = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestFlattenCategoryPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/Food & Drink/Restaurants", []string{"Food", "Drink", "Restaurants"}},
		{"/Shopping", []string{"Shopping"}},
		{"/", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := flattenCategoryPath(tt.path)
			if len(got) != len(tt.want) {
				t.Fatalf("flattenCategoryPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("flattenCategoryPath(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
				}
			}
		})
	}
}

type fakeExtractor struct {
	extraction Extraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, imageBytes []byte) (Extraction, error) {
	return f.extraction, f.err
}

func TestAnalyze(t *testing.T) {
	extractor := &fakeExtractor{
		extraction: Extraction{
			RawText:       "Walmart\n6/1/2020\nMilk $3.49\nTOTAL $17.23\n",
			Store:         "Walmart",
			CategoryPaths: []string{"/Food & Drink/Groceries"},
		},
	}

	results, err := NewAnalyzer(extractor).Analyze(context.Background(), []byte("jpeg"), testNow)
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}

	if results.Store == nil || *results.Store != "Walmart" {
		t.Errorf("Store = %v, want Walmart", results.Store)
	}
	if results.RawText == nil || *results.RawText == "" {
		t.Error("RawText should be set")
	}
	if results.Price == nil || math.Abs(*results.Price-17.23) > 1e-9 {
		t.Errorf("Price = %v, want 17.23", results.Price)
	}
	if results.Timestamp == nil {
		t.Fatal("Timestamp should be set")
	}
	if got := time.UnixMilli(*results.Timestamp).UTC().Format("2006-01-02"); got != "2020-06-01" {
		t.Errorf("Timestamp = %s, want 2020-06-01", got)
	}

	want := []string{"food", "drink", "groceries"}
	if len(results.Categories) != len(want) {
		t.Fatalf("Categories = %v, want %v", results.Categories, want)
	}
	for i := range want {
		if results.Categories[i] != want[i] {
			t.Errorf("Categories[%d] = %q, want %q", i, results.Categories[i], want[i])
		}
	}
}

func TestAnalyzeUnreadableImage(t *testing.T) {
	extractor := &fakeExtractor{extraction: Extraction{}}

	results, err := NewAnalyzer(extractor).Analyze(context.Background(), []byte("jpeg"), testNow)
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}

	if results.RawText != nil || results.Store != nil || results.Price != nil || results.Timestamp != nil {
		t.Errorf("expected all optional fields nil, got %+v", results)
	}
}

func TestStripModelFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain json", `{"raw_text":""}`, `{"raw_text":""}`},
		{"json fence", "```json\n{\"raw_text\":\"\"}\n```", `{"raw_text":""}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading chatter", "Here you go: {\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripModelFences(tt.raw); got != tt.want {
				t.Errorf("stripModelFences(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
