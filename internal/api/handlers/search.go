package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/googleinterns/receipt-roundup-sub000/internal/api/middleware"
	"github.com/googleinterns/receipt-roundup-sub000/internal/auth"
	"github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/query"
	"github.com/googleinterns/receipt-roundup-sub000/internal/receipt"
)

// SearchHandler handles the receipt search endpoint.
type SearchHandler struct {
	repo bigquery.ReceiptRepository
	log  zerolog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(repo bigquery.ReceiptRepository, log zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		repo: repo,
		log:  log,
	}
}

// Search handles GET /api/search
//
// The six filter fields arrive as query parameters. minPrice and maxPrice
// are required; leaving one out of the URL entirely is an error distinct
// from sending it empty.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.FromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusForbidden, "Authentication required")
		return
	}

	params := r.URL.Query()

	var minPrice, maxPrice *string
	if params.Has("minPrice") {
		v := params.Get("minPrice")
		minPrice = &v
	}
	if params.Has("maxPrice") {
		v := params.Get("maxPrice")
		maxPrice = &v
	}

	criteria, err := query.New(
		params.Get("timeZone"),
		params.Get("category"),
		params.Get("dateRange"),
		params.Get("store"),
		minPrice,
		maxPrice,
	)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrDateRange):
			middleware.WriteError(w, http.StatusBadRequest, "Date range could not be parsed")
		case errors.Is(err, query.ErrInvalidPriceFormat):
			middleware.WriteError(w, http.StatusBadRequest, "Price bound could not be parsed")
		case errors.Is(err, query.ErrMissingField):
			middleware.WriteError(w, http.StatusBadRequest, "minPrice and maxPrice are required")
		default:
			middleware.WriteError(w, http.StatusBadRequest, "Invalid search filters")
		}
		return
	}

	receipts, err := h.repo.QueryReceipts(ctx, user.ID, criteria)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to search receipts")
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
