// Package receipt holds the domain model shared by the API handlers, the
// analysis pipeline and the storage layer.
package receipt

// Receipt represents one stored purchase. It is produced by the storage
// layer and treated as read-only by everything downstream.
type Receipt struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Timestamp is the transaction time in milliseconds since epoch, UTC.
	Timestamp int64 `json:"timestamp"`

	// Price is nil when no amount could be extracted from the image.
	Price *float64 `json:"price,omitempty"`

	// Store is empty when no store could be identified.
	Store string `json:"store,omitempty"`

	// Categories are sanitized, deduplicated labels in first-seen order.
	Categories []string `json:"categories"`

	RawText  string `json:"rawText,omitempty"`
	ImageURI string `json:"imageUri,omitempty"`
}

// AnalysisResults holds what could be extracted from a receipt image. Every
// field except Categories is optional; nil means the extraction found
// nothing usable for that field.
type AnalysisResults struct {
	RawText    *string
	Categories []string
	Store      *string
	Timestamp  *int64
	Price      *float64
}
