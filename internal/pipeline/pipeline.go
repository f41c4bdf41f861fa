// Package pipeline runs the receipt analysis flow end to end: fetch the
// uploaded image, extract fields from it and write them back onto the
// stored receipt row.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/googleinterns/receipt-roundup-sub000/internal/analysis"
	"github.com/googleinterns/receipt-roundup-sub000/internal/format"
	"github.com/googleinterns/receipt-roundup-sub000/internal/imagestore"
	"github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/jobs"
)

// Processor executes analysis jobs against a receipt repository.
type Processor struct {
	repo     bigquery.ReceiptRepository
	images   imagestore.Store
	analyzer *analysis.Analyzer
	log      zerolog.Logger
}

// NewProcessor creates a processor wired to the given dependencies.
func NewProcessor(repo bigquery.ReceiptRepository, images imagestore.Store, analyzer *analysis.Analyzer, log zerolog.Logger) *Processor {
	return &Processor{
		repo:     repo,
		images:   images,
		analyzer: analyzer,
		log:      log,
	}
}

// Handler adapts the processor into a queue job handler.
func (p *Processor) Handler() jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		analyzeJob, ok := job.(*jobs.AnalyzeReceiptJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		return p.ProcessReceipt(ctx, analyzeJob.UserID, analyzeJob.ReceiptID, analyzeJob.ImageURI)
	}
}

// ProcessReceipt analyzes one uploaded image and merges the extracted fields
// into the stored row. Fields the extraction could not determine keep
// whatever value the row already has, so a rerun never erases data.
func (p *Processor) ProcessReceipt(ctx context.Context, userID, receiptID, imageURI string) error {
	imageBytes, err := p.images.Fetch(ctx, imageURI)
	if err != nil {
		return fmt.Errorf("ProcessReceipt: fetching image %s: %w", imageURI, err)
	}

	results, err := p.analyzer.Analyze(ctx, imageBytes, time.Now())
	if err != nil {
		return fmt.Errorf("ProcessReceipt: analyzing image %s: %w", imageURI, err)
	}

	row, err := p.repo.GetReceipt(ctx, userID, receiptID)
	if err != nil {
		return fmt.Errorf("ProcessReceipt: loading receipt %s: %w", receiptID, err)
	}

	updated := row.Domain()
	if results.RawText != nil {
		updated.RawText = *results.RawText
	}
	if results.Store != nil {
		updated.Store = format.Sanitize(*results.Store)
	}
	if results.Timestamp != nil {
		updated.Timestamp = *results.Timestamp
	}
	if results.Price != nil {
		updated.Price = results.Price
	}
	if len(results.Categories) > 0 {
		updated.Categories = results.Categories
	}

	if err := p.repo.UpdateReceipt(ctx, bigquery.NewReceiptRow(updated, time.Now())); err != nil {
		return fmt.Errorf("ProcessReceipt: updating receipt %s: %w", receiptID, err)
	}

	p.log.Info().
		Str("receipt_id", receiptID).
		Str("image_uri", imageURI).
		Bool("has_price", results.Price != nil).
		Bool("has_timestamp", results.Timestamp != nil).
		Str("store", updated.Store).
		Msg("Receipt analysis completed")

	return nil
}
