package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	bq "cloud.google.com/go/bigquery"

	"github.com/googleinterns/receipt-roundup-sub000/internal/auth"
	"github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/jobs"
	"github.com/googleinterns/receipt-roundup-sub000/internal/logger"
	"github.com/googleinterns/receipt-roundup-sub000/internal/query"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// fakeRepository keeps rows in a map keyed by receipt ID.
type fakeRepository struct {
	rows     map[string]*bigquery.ReceiptRow
	queryErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: make(map[string]*bigquery.ReceiptRow)}
}

func (f *fakeRepository) InsertReceipt(_ context.Context, row *bigquery.ReceiptRow) error {
	f.rows[row.ReceiptID] = row
	return nil
}

func (f *fakeRepository) GetReceipt(_ context.Context, userID, receiptID string) (*bigquery.ReceiptRow, error) {
	row, ok := f.rows[receiptID]
	if !ok || row.UserID != userID {
		return nil, bigquery.ErrReceiptNotFound
	}
	return row, nil
}

func (f *fakeRepository) UpdateReceipt(_ context.Context, row *bigquery.ReceiptRow) error {
	if _, ok := f.rows[row.ReceiptID]; !ok {
		return bigquery.ErrReceiptNotFound
	}
	f.rows[row.ReceiptID] = row
	return nil
}

func (f *fakeRepository) DeleteReceipt(_ context.Context, userID, receiptID string) error {
	delete(f.rows, receiptID)
	return nil
}

func (f *fakeRepository) ListUserReceipts(_ context.Context, userID string) ([]receipt.Receipt, error) {
	var receipts []receipt.Receipt
	for _, row := range f.rows {
		if row.UserID == userID {
			receipts = append(receipts, row.Domain())
		}
	}
	return receipts, nil
}

func (f *fakeRepository) QueryReceipts(_ context.Context, userID string, c query.Criteria) ([]receipt.Receipt, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var receipts []receipt.Receipt
	for _, row := range f.rows {
		if row.UserID != userID || !row.Price.Valid {
			continue
		}
		if row.TimestampMS < c.StartTimestamp || row.TimestampMS > c.EndTimestamp {
			continue
		}
		if row.Price.Float64 < c.MinPrice || row.Price.Float64 > c.MaxPrice {
			continue
		}
		if c.Store != "" && row.Store != c.Store {
			continue
		}
		receipts = append(receipts, row.Domain())
	}
	return receipts, nil
}

// fakePublisher records published jobs.
type fakePublisher struct {
	published []*jobs.AnalyzeReceiptJob
	err       error
}

func (f *fakePublisher) PublishAnalyzeReceipt(_ context.Context, job *jobs.AnalyzeReceiptJob) error {
	if f.err != nil {
		return f.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(f.published)+1)
	job.Status = jobs.JobStatusPending
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// fakeImageStore records uploads and deletes in memory.
type fakeImageStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{objects: make(map[string][]byte)}
}

func (f *fakeImageStore) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[objectName] = data
	return "gs://test-bucket/" + objectName, nil
}

func (f *fakeImageStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	return f.objects[strings.TrimPrefix(uri, "gs://test-bucket/")], nil
}

func (f *fakeImageStore) Delete(_ context.Context, uri string) error {
	f.deleted = append(f.deleted, uri)
	delete(f.objects, strings.TrimPrefix(uri, "gs://test-bucket/"))
	return nil
}

const testUserID = "user-1"

func authedRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := auth.WithUser(r.Context(), auth.User{ID: testUserID, Email: "user@example.com"})
	return r.WithContext(ctx)
}

func seedReceipt(repo *fakeRepository, id string, price float64, store string, timestamp int64) {
	p := price
	repo.rows[id] = &bigquery.ReceiptRow{
		ReceiptID:   id,
		UserID:      testUserID,
		TimestampMS: timestamp,
		Price:       bq.NullFloat64{Float64: p, Valid: true},
		Store:       store,
		Categories:  []string{"groceries"},
		ImageURI:    "gs://test-bucket/uploads/" + id + ".jpg",
	}
}

func TestUploadReceiptEnqueuesAnalysis(t *testing.T) {
	repo := newFakeRepository()
	images := newFakeImageStore()
	publisher := &fakePublisher{}
	h := NewReceiptsHandler(repo, images, publisher, 1<<20, logger.NewWithWriter(io.Discard))

	body := bytes.NewReader([]byte("jpeg-bytes"))
	r := authedRequest(http.MethodPost, "/api/receipts/upload/r-1?object_name=uploads/r-1.jpg&filename=receipt.jpg", body)
	w := httptest.NewRecorder()

	h.UploadReceipt(w, r, "r-1")

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	if _, ok := repo.rows["r-1"]; !ok {
		t.Error("receipt row was not inserted")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(publisher.published))
	}
	job := publisher.published[0]
	if job.ReceiptID != "r-1" || job.UserID != testUserID {
		t.Errorf("job = %+v, want receipt r-1 owned by %s", job, testUserID)
	}
	if len(images.objects) != 1 {
		t.Errorf("stored %d objects, want 1", len(images.objects))
	}
}

func TestUploadReceiptRejectsBadFilename(t *testing.T) {
	h := NewReceiptsHandler(newFakeRepository(), newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	r := authedRequest(http.MethodPost, "/api/receipts/upload/r-1?object_name=uploads/r-1.png&filename=receipt.png", bytes.NewReader([]byte("png")))
	w := httptest.NewRecorder()

	h.UploadReceipt(w, r, "r-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadReceiptRequiresAuth(t *testing.T) {
	h := NewReceiptsHandler(newFakeRepository(), newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	r := httptest.NewRequest(http.MethodPost, "/api/receipts/upload/r-1?object_name=uploads/r-1.jpg&filename=receipt.jpg", bytes.NewReader([]byte("jpeg")))
	w := httptest.NewRecorder()

	h.UploadReceipt(w, r, "r-1")

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestCreateUploadURLValidatesFilename(t *testing.T) {
	h := NewReceiptsHandler(newFakeRepository(), newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	tests := []struct {
		name     string
		filename string
		want     int
	}{
		{"jpg accepted", "receipt.jpg", http.StatusOK},
		{"jpeg accepted", "receipt.JPEG", http.StatusOK},
		{"png rejected", "receipt.png", http.StatusBadRequest},
		{"empty rejected", "", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(map[string]string{"filename": tc.filename})
			r := authedRequest(http.MethodPost, "/api/receipts/upload-url", bytes.NewReader(payload))
			w := httptest.NewRecorder()

			h.CreateUploadURL(w, r)

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestEditReceiptNormalizesFields(t *testing.T) {
	repo := newFakeRepository()
	seedReceipt(repo, "r-1", 5.00, "walmart", 1000)
	h := NewReceiptsHandler(repo, newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	payload, _ := json.Marshal(map[string]interface{}{
		"store":      "  WALMART  ",
		"price":      "17.236",
		"timestamp":  "1000",
		"categories": []string{"Candy", "DRINK", "candy"},
	})
	r := authedRequest(http.MethodPut, "/api/receipts/r-1", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	h.EditReceipt(w, r, "r-1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	row := repo.rows["r-1"]
	if row.Store != "walmart" {
		t.Errorf("store = %q, want %q", row.Store, "walmart")
	}
	if !row.Price.Valid || row.Price.Float64 != 17.24 {
		t.Errorf("price = %+v, want 17.24", row.Price)
	}
	if len(row.Categories) != 2 || row.Categories[0] != "candy" || row.Categories[1] != "drink" {
		t.Errorf("categories = %v, want [candy drink]", row.Categories)
	}
}

func TestEditReceiptRejectsBadInput(t *testing.T) {
	repo := newFakeRepository()
	seedReceipt(repo, "r-1", 5.00, "walmart", 1000)
	h := NewReceiptsHandler(repo, newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"negative price", map[string]interface{}{"store": "s", "price": "-1.00", "timestamp": "1000"}},
		{"unparseable price", map[string]interface{}{"store": "s", "price": "abc", "timestamp": "1000"}},
		{"future timestamp", map[string]interface{}{"store": "s", "price": "1.00", "timestamp": "99999999999999"}},
		{"unparseable timestamp", map[string]interface{}{"store": "s", "price": "1.00", "timestamp": "june"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(tc.payload)
			r := authedRequest(http.MethodPut, "/api/receipts/r-1", bytes.NewReader(payload))
			w := httptest.NewRecorder()

			h.EditReceipt(w, r, "r-1")

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestDeleteReceiptRemovesImage(t *testing.T) {
	repo := newFakeRepository()
	seedReceipt(repo, "r-1", 5.00, "walmart", 1000)
	images := newFakeImageStore()
	h := NewReceiptsHandler(repo, images, &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	r := authedRequest(http.MethodDelete, "/api/receipts/r-1", nil)
	w := httptest.NewRecorder()

	h.DeleteReceipt(w, r, "r-1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if _, ok := repo.rows["r-1"]; ok {
		t.Error("receipt row still present after delete")
	}
	if len(images.deleted) != 1 {
		t.Errorf("deleted %d images, want 1", len(images.deleted))
	}
}

func TestDeleteReceiptNotFound(t *testing.T) {
	h := NewReceiptsHandler(newFakeRepository(), newFakeImageStore(), &fakePublisher{}, 1<<20, logger.NewWithWriter(io.Discard))

	r := authedRequest(http.MethodDelete, "/api/receipts/missing", nil)
	w := httptest.NewRecorder()

	h.DeleteReceipt(w, r, "missing")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSearchMapsCriteriaErrors(t *testing.T) {
	h := NewSearchHandler(newFakeRepository(), logger.NewWithWriter(io.Discard))

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{
			"valid filters",
			"/api/search?timeZone=America/Chicago&category=candy&dateRange=June 1, 2020 - June 30, 2020&store=walmart&minPrice=5.00&maxPrice=30.00",
			http.StatusOK,
		},
		{
			"bad date range",
			"/api/search?timeZone=UTC&dateRange=not a range&minPrice=0&maxPrice=10",
			http.StatusBadRequest,
		},
		{
			"bad price bound",
			"/api/search?timeZone=UTC&dateRange=June 1, 2020 - June 30, 2020&minPrice=abc&maxPrice=10",
			http.StatusBadRequest,
		},
		{
			"missing price bound",
			"/api/search?timeZone=UTC&dateRange=June 1, 2020 - June 30, 2020&maxPrice=10",
			http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := authedRequest(http.MethodGet, strings.ReplaceAll(tc.target, " ", "%20"), nil)
			w := httptest.NewRecorder()

			h.Search(w, r)

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestSearchFiltersByCriteria(t *testing.T) {
	repo := newFakeRepository()
	// June 15, 2020 UTC, inside the queried range.
	seedReceipt(repo, "in-range", 20.00, "walmart", 1592179200000)
	// January 2019, outside.
	seedReceipt(repo, "out-of-range", 20.00, "walmart", 1546300800000)
	h := NewSearchHandler(repo, logger.NewWithWriter(io.Discard))

	target := "/api/search?timeZone=UTC&dateRange=June%201,%202020%20-%20June%2030,%202020&store=walmart&minPrice=5.00&maxPrice=30.00"
	r := authedRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()

	h.Search(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Receipts []receipt.Receipt `json:"receipts"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || len(resp.Receipts) != 1 || resp.Receipts[0].ID != "in-range" {
		t.Errorf("got %+v, want exactly the in-range receipt", resp)
	}
}

func TestSpendingReport(t *testing.T) {
	repo := newFakeRepository()
	seedReceipt(repo, "r-1", 5.00, "walmart", 1000)
	seedReceipt(repo, "r-2", 21.12, "WALMART", 2000)
	h := NewAnalyticsHandler(repo, logger.NewWithWriter(io.Discard))

	r := authedRequest(http.MethodGet, "/api/spending", nil)
	w := httptest.NewRecorder()

	h.SpendingReport(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var report struct {
		StoreTotals map[string]float64 `json:"storeTotals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got := report.StoreTotals["Walmart"]; got != 26.12 {
		t.Errorf("StoreTotals[Walmart] = %v, want 26.12", got)
	}
}
