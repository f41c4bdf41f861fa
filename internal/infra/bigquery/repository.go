package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/googleinterns/receipt-roundup-sub000/internal/query"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// ErrReceiptNotFound indicates a lookup for a receipt that does not exist or
// belongs to another user.
var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptRepository provides the storage operations the handlers depend on.
type ReceiptRepository interface {
	// InsertReceipt stores a new receipt row.
	InsertReceipt(ctx context.Context, row *ReceiptRow) error

	// GetReceipt fetches one receipt by ID scoped to its owner, or
	// ErrReceiptNotFound.
	GetReceipt(ctx context.Context, userID, receiptID string) (*ReceiptRow, error)

	// UpdateReceipt overwrites the mutable fields of an existing row.
	UpdateReceipt(ctx context.Context, row *ReceiptRow) error

	// DeleteReceipt removes one receipt scoped to its owner.
	DeleteReceipt(ctx context.Context, userID, receiptID string) error

	// ListUserReceipts fetches all receipts of one user in transaction order.
	ListUserReceipts(ctx context.Context, userID string) ([]receipt.Receipt, error)

	// QueryReceipts applies the filter criteria to one user's receipts.
	QueryReceipts(ctx context.Context, userID string, c query.Criteria) ([]receipt.Receipt, error)
}

// BigQueryReceiptRepository is the concrete ReceiptRepository backed by
// BigQuery. It holds a shared client to avoid creating a new connection for
// each operation.
type BigQueryReceiptRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryReceiptRepository creates a repository with a shared client.
func NewBigQueryReceiptRepository(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*BigQueryReceiptRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryReceiptRepository: creating client: %w", err)
	}
	return &BigQueryReceiptRepository{
		client:    client,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryReceiptRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertReceipt delegates to InsertReceiptWithClient with the shared client.
func (r *BigQueryReceiptRepository) InsertReceipt(ctx context.Context, row *ReceiptRow) error {
	return InsertReceiptWithClient(ctx, r.client, r.datasetID, row)
}

// GetReceipt delegates to GetReceiptWithClient with the shared client.
func (r *BigQueryReceiptRepository) GetReceipt(ctx context.Context, userID, receiptID string) (*ReceiptRow, error) {
	return GetReceiptWithClient(ctx, r.client, r.datasetID, userID, receiptID)
}

// UpdateReceipt delegates to UpdateReceiptWithClient with the shared client.
func (r *BigQueryReceiptRepository) UpdateReceipt(ctx context.Context, row *ReceiptRow) error {
	return UpdateReceiptWithClient(ctx, r.client, r.datasetID, row)
}

// DeleteReceipt delegates to DeleteReceiptWithClient with the shared client.
func (r *BigQueryReceiptRepository) DeleteReceipt(ctx context.Context, userID, receiptID string) error {
	return DeleteReceiptWithClient(ctx, r.client, r.datasetID, userID, receiptID)
}

// ListUserReceipts delegates to ListUserReceiptsWithClient with the shared client.
func (r *BigQueryReceiptRepository) ListUserReceipts(ctx context.Context, userID string) ([]receipt.Receipt, error) {
	return ListUserReceiptsWithClient(ctx, r.client, r.datasetID, userID)
}

// QueryReceipts delegates to QueryReceiptsWithClient with the shared client.
func (r *BigQueryReceiptRepository) QueryReceipts(ctx context.Context, userID string, c query.Criteria) ([]receipt.Receipt, error) {
	return QueryReceiptsWithClient(ctx, r.client, r.datasetID, userID, c)
}
