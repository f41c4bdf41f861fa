// Package bigquery persists receipt records in BigQuery and translates the
// validated filter criteria into parameterized queries.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// ReceiptRow maps one row of the receipts table.
type ReceiptRow struct {
	ReceiptID string `bigquery:"receipt_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // REQUIRED

	// Transaction time in epoch milliseconds, UTC.
	TimestampMS int64 `bigquery:"timestamp_ms"` // REQUIRED

	// PurchaseDate is the UTC calendar day of TimestampMS, kept for
	// partition pruning on day-granular reports.
	PurchaseDate civil.Date `bigquery:"purchase_date"` // DATE, REQUIRED

	Price bigquery.NullFloat64 `bigquery:"price"` // NUMERIC, NULLABLE

	Store      string   `bigquery:"store"`      // NULLABLE (empty = unknown)
	Categories []string `bigquery:"categories"` // REPEATED

	RawText  string `bigquery:"raw_text"`  // NULLABLE
	ImageURI string `bigquery:"image_uri"` // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// NewReceiptRow builds a row from a domain receipt, stamping created_ts.
func NewReceiptRow(r receipt.Receipt, now time.Time) *ReceiptRow {
	row := &ReceiptRow{
		ReceiptID:    r.ID,
		UserID:       r.UserID,
		TimestampMS:  r.Timestamp,
		PurchaseDate: civil.DateOf(time.UnixMilli(r.Timestamp).UTC()),
		Store:        r.Store,
		Categories:   r.Categories,
		RawText:      r.RawText,
		ImageURI:     r.ImageURI,
		CreatedTS:    now,
	}

	if r.Price != nil {
		row.Price = bigquery.NullFloat64{Float64: *r.Price, Valid: true}
	}

	return row
}

// Domain converts the row back into the domain receipt.
func (row *ReceiptRow) Domain() receipt.Receipt {
	r := receipt.Receipt{
		ID:         row.ReceiptID,
		UserID:     row.UserID,
		Timestamp:  row.TimestampMS,
		Store:      row.Store,
		Categories: row.Categories,
		RawText:    row.RawText,
		ImageURI:   row.ImageURI,
	}

	if row.Price.Valid {
		price := row.Price.Float64
		r.Price = &price
	}

	return r
}
