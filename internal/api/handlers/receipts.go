// Package handlers contains the HTTP endpoints of the receipt API. Every
// handler expects an authenticated user on the request context and scopes
// storage access to that user.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/googleinterns/receipt-roundup-sub000/internal/api/middleware"
	"github.com/googleinterns/receipt-roundup-sub000/internal/auth"
	"github.com/googleinterns/receipt-roundup-sub000/internal/format"
	"github.com/googleinterns/receipt-roundup-sub000/internal/imagestore"
	"github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/jobs"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// ReceiptsHandler handles receipt-related endpoints.
type ReceiptsHandler struct {
	repo           bigquery.ReceiptRepository
	images         imagestore.Store
	publisher      jobs.Publisher
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(repo bigquery.ReceiptRepository, images imagestore.Store, publisher jobs.Publisher, maxUploadBytes int64, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		repo:           repo,
		images:         images,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// ListReceipts handles GET /api/receipts
func (h *ReceiptsHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	receipts, err := h.repo.ListUserReceipts(ctx, user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list receipts")
		return
	}

	if receipts == nil {
		receipts = []receipt.Receipt{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// GetReceipt handles GET /api/receipts/{id}
func (h *ReceiptsHandler) GetReceipt(w http.ResponseWriter, r *http.Request, receiptID string) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	row, err := h.repo.GetReceipt(ctx, user.ID, receiptID)
	if err != nil {
		if errors.Is(err, bigquery.ErrReceiptNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to get receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, row.Domain())
}

// CreateUploadURL handles POST /api/receipts/upload-url
func (h *ReceiptsHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	var req struct {
		Filename string `json:"filename"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filename := path.Base(req.Filename)
	if !imagestore.IsValidFilename(filename) {
		middleware.WriteError(w, http.StatusBadRequest, "Filename must end in .jpg or .jpeg")
		return
	}

	// Generate unique object name
	objectName := fmt.Sprintf("uploads/%s/%s", time.Now().Format("2006/01/02"), uuid.New().String()+"-"+filename)
	receiptID := uuid.New().String()

	uploadURL := fmt.Sprintf("/api/receipts/upload/%s?object_name=%s&filename=%s", receiptID, url.QueryEscape(objectName), url.QueryEscape(filename))

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"upload_url":  uploadURL,
		"object_name": objectName,
		"receipt_id":  receiptID,
	})
}

// UploadReceipt handles POST /api/receipts/upload/{receiptId}
//
// The request body is the raw JPEG. A receipt row with just the image URI is
// stored immediately and an analysis job is enqueued to fill in the rest.
func (h *ReceiptsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request, receiptID string) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	objectName := r.URL.Query().Get("object_name")
	if objectName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "object_name is required")
		return
	}

	filename := path.Base(r.URL.Query().Get("filename"))
	if !imagestore.IsValidFilename(filename) {
		middleware.WriteError(w, http.StatusBadRequest, "Filename must end in .jpg or .jpeg")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	imageURI, err := h.images.Upload(ctx, objectName, "image/jpeg", body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image exceeds the upload size limit")
			return
		}
		h.log.Error().Err(err).Str("object_name", objectName).Msg("Failed to upload image")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	now := time.Now()
	row := bigquery.NewReceiptRow(receipt.Receipt{
		ID:        receiptID,
		UserID:    user.ID,
		Timestamp: now.UnixMilli(),
		ImageURI:  imageURI,
	}, now)

	if err := h.repo.InsertReceipt(ctx, row); err != nil {
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to insert receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save receipt")
		return
	}

	job := &jobs.AnalyzeReceiptJob{
		ReceiptID: receiptID,
		UserID:    user.ID,
		ImageURI:  imageURI,
	}

	if err := h.publisher.PublishAnalyzeReceipt(ctx, job); err != nil {
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().
		Str("receipt_id", receiptID).
		Str("job_id", job.JobID).
		Str("image_uri", imageURI).
		Msg("Receipt uploaded")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"receipt_id": receiptID,
		"image_uri":  imageURI,
		"job_id":     job.JobID,
		"status":     string(job.Status),
	})
}

// EditReceipt handles PUT /api/receipts/{id}
//
// All fields arrive as raw form values and pass through the same
// normalization as extracted ones, so edited and analyzed receipts are
// indistinguishable downstream.
func (h *ReceiptsHandler) EditReceipt(w http.ResponseWriter, r *http.Request, receiptID string) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	var req struct {
		Store      string   `json:"store"`
		Price      string   `json:"price"`
		Timestamp  string   `json:"timestamp"`
		Categories []string `json:"categories"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	price, err := format.ParseAndRoundPrice(req.Price)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Price could not be parsed")
		return
	}

	timestamp, err := format.ParseTimestamp(req.Timestamp, time.Now())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Transaction date could not be parsed")
		return
	}

	row, err := h.repo.GetReceipt(ctx, user.ID, receiptID)
	if err != nil {
		if errors.Is(err, bigquery.ErrReceiptNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to get receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to edit receipt")
		return
	}

	updated := row.Domain()
	updated.Store = format.Sanitize(req.Store)
	updated.Price = &price
	updated.Timestamp = timestamp
	updated.Categories = format.SanitizeCategories(req.Categories)

	if err := h.repo.UpdateReceipt(ctx, bigquery.NewReceiptRow(updated, time.Now())); err != nil {
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to update receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to edit receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteReceipt handles DELETE /api/receipts/{id}
func (h *ReceiptsHandler) DeleteReceipt(w http.ResponseWriter, r *http.Request, receiptID string) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	row, err := h.repo.GetReceipt(ctx, user.ID, receiptID)
	if err != nil {
		if errors.Is(err, bigquery.ErrReceiptNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to get receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete receipt")
		return
	}

	if row.ImageURI != "" {
		if err := h.images.Delete(ctx, row.ImageURI); err != nil {
			// The row is still deleted; an orphaned object only costs storage.
			h.log.Warn().Err(err).Str("image_uri", row.ImageURI).Msg("Failed to delete receipt image")
		}
	}

	if err := h.repo.DeleteReceipt(ctx, user.ID, receiptID); err != nil {
		h.log.Error().Err(err).Str("receipt_id", receiptID).Msg("Failed to delete receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"receipt_id": receiptID,
		"status":     "deleted",
	})
}
