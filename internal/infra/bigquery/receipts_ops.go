package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/googleinterns/receipt-roundup-sub000/internal/query"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

const receiptsTable = "receipts"

// InsertReceiptWithClient streams one receipt row into the receipts table.
func InsertReceiptWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *ReceiptRow) error {
	inserter := client.Dataset(datasetID).Table(receiptsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertReceipt: inserting row: %w", err)
	}
	return nil
}

// GetReceiptWithClient fetches one receipt by ID, scoped to its owner.
func GetReceiptWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID, receiptID string) (*ReceiptRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		WHERE receipt_id = @receipt_id
		  AND user_id = @user_id
		LIMIT 1
	`, datasetID, receiptsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "receipt_id", Value: receiptID},
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetReceipt: query read: %w", err)
	}

	var row ReceiptRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, ErrReceiptNotFound
	} else if err != nil {
		return nil, fmt.Errorf("GetReceipt: iterating rows: %w", err)
	}

	return &row, nil
}

// UpdateReceiptWithClient overwrites the mutable fields of a receipt row.
func UpdateReceiptWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *ReceiptRow) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET store = @store,
		    price = @price,
		    timestamp_ms = @timestamp_ms,
		    purchase_date = @purchase_date,
		    categories = @categories,
		    updated_ts = @updated_ts
		WHERE receipt_id = @receipt_id
		  AND user_id = @user_id
	`, datasetID, receiptsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "store", Value: row.Store},
		{Name: "price", Value: row.Price},
		{Name: "timestamp_ms", Value: row.TimestampMS},
		{Name: "purchase_date", Value: row.PurchaseDate},
		{Name: "categories", Value: row.Categories},
		{Name: "updated_ts", Value: time.Now()},
		{Name: "receipt_id", Value: row.ReceiptID},
		{Name: "user_id", Value: row.UserID},
	}

	return runDML(ctx, q, "UpdateReceipt")
}

// DeleteReceiptWithClient removes one receipt row, scoped to its owner.
func DeleteReceiptWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID, receiptID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE receipt_id = @receipt_id
		  AND user_id = @user_id
	`, datasetID, receiptsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "receipt_id", Value: receiptID},
		{Name: "user_id", Value: userID},
	}

	return runDML(ctx, q, "DeleteReceipt")
}

// ListUserReceiptsWithClient fetches every receipt belonging to one user,
// in transaction order.
func ListUserReceiptsWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string) ([]receipt.Receipt, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY timestamp_ms
	`, datasetID, receiptsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	return readReceipts(ctx, q, "ListUserReceipts")
}

// QueryReceiptsWithClient applies the validated filter criteria to one
// user's receipts. Empty store and category criteria match everything; the
// timestamp and price bounds are inclusive on both sides, so inverted
// bounds simply return nothing.
func QueryReceiptsWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string, c query.Criteria) ([]receipt.Receipt, error) {
	category := ""
	if len(c.Categories) > 0 {
		category = c.Categories[0]
	}

	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		WHERE user_id = @user_id
		  AND timestamp_ms BETWEEN @start_ts AND @end_ts
		  AND price IS NOT NULL
		  AND price BETWEEN @min_price AND @max_price
		  AND (@store = '' OR store = @store)
		  AND (@category = '' OR @category IN UNNEST(categories))
		ORDER BY timestamp_ms
	`, datasetID, receiptsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_ts", Value: c.StartTimestamp},
		{Name: "end_ts", Value: c.EndTimestamp},
		{Name: "min_price", Value: c.MinPrice},
		{Name: "max_price", Value: c.MaxPrice},
		{Name: "store", Value: c.Store},
		{Name: "category", Value: category},
	}

	return readReceipts(ctx, q, "QueryReceipts")
}

func readReceipts(ctx context.Context, q *bigquery.Query, op string) ([]receipt.Receipt, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var receipts []receipt.Receipt
	for {
		var row ReceiptRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating rows: %w", op, err)
		}
		receipts = append(receipts, row.Domain())
	}

	return receipts, nil
}

func runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}

	return nil
}
