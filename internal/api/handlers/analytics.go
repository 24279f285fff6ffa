package handlers

import (
	"net/http"
	"strconv"

	"github.com/dotstark/ragserve/internal/history"
)

type AnalyticsHandler struct {
	history *history.Store
}

func NewAnalyticsHandler(hs *history.Store) *AnalyticsHandler {
	return &AnalyticsHandler{history: hs}
}

// TopQuestions returns the tenant's most frequent questions, aggregated
// across all conversations.
func (h *AnalyticsHandler) TopQuestions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	top, err := h.history.TopQuestions(r.Context(), tenantID.String(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate questions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": top})
}

// Overview reports basic conversation stats for the tenant.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	conversations, err := h.history.ConversationCount(r.Context(), tenantID.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}
