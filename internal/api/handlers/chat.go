package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dotstark/ragserve/internal/history"
	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/rag"
	"github.com/dotstark/ragserve/internal/tenant"
)

// Messages returned in place of an answer when generation cannot proceed.
const (
	quotaMessage = "Sorry, I've reached my query limit for now. Please try again later."
	errorMessage = "Sorry, something went wrong while answering. Please try again."
)

type ChatHandler struct {
	answerer *rag.Answerer
	history  *history.Store
	tenants  *tenant.Service
}

func NewChatHandler(answerer *rag.Answerer, hs *history.Store, ts *tenant.Service) *ChatHandler {
	return &ChatHandler{answerer: answerer, history: hs, tenants: ts}
}

type askRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Ask answers one question against the tenant's knowledge base. The
// endpoint is public; the tenant id in the path scopes retrieval.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	if _, err := h.tenants.GetByID(r.Context(), tenantID); err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	var msgs []llm.Message
	msgs, err = h.history.Recent(r.Context(), tenantID.String(), req.UserID)
	if err != nil {
		slog.Warn("failed to load conversation history", "tenant_id", tenantID, "error", err)
	}

	answer, err := h.answerer.Ask(r.Context(), tenantID.String(), req.Question, msgs)
	if err != nil {
		if errors.Is(err, llm.ErrQuotaExceeded) {
			writeJSON(w, http.StatusOK, askResponse{Answer: quotaMessage})
			return
		}
		slog.Error("answer generation failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusOK, askResponse{Answer: errorMessage})
		return
	}

	if err := h.history.AppendExchange(r.Context(), tenantID.String(), req.UserID, req.Question, answer.Text); err != nil {
		slog.Warn("failed to record conversation", "tenant_id", tenantID, "error", err)
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer.Text, Sources: answer.Sources})
}
