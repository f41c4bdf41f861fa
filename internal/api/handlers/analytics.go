package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/googleinterns/receipt-roundup-sub000/internal/analytics"
	"github.com/googleinterns/receipt-roundup-sub000/internal/api/middleware"
	"github.com/googleinterns/receipt-roundup-sub000/internal/auth"
	"github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
)

// AnalyticsHandler handles the spending report endpoint.
type AnalyticsHandler struct {
	repo bigquery.ReceiptRepository
	log  zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(repo bigquery.ReceiptRepository, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo: repo,
		log:  log,
	}
}

// SpendingReport handles GET /api/spending
func (h *AnalyticsHandler) SpendingReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	receipts, err := h.repo.ListUserReceipts(ctx, user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list receipts for report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute spending report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, analytics.NewReport(receipts))
}
