package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkechi/allergyjournal/backend/internal/application/services"
)

// SummaryProvider defines the summary operations used by the handler.
type SummaryProvider interface {
	DailySummary(ctx context.Context, day time.Time) (*services.DailySummary, error)
}

// SummaryHandler serves cached daily journal summaries.
type SummaryHandler struct {
	summaries SummaryProvider
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(summaries SummaryProvider) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// GetDailySummary handles GET /api/summary/daily?date=YYYY-MM-DD
func (h *SummaryHandler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := h.summaries.DailySummary(r.Context(), day)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to build daily summary")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
