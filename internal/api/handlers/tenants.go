package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dotstark/ragserve/internal/auth"
	"github.com/dotstark/ragserve/internal/models"
	"github.com/dotstark/ragserve/internal/tenant"
)

type TenantHandler struct {
	tenants *tenant.Service
}

func NewTenantHandler(ts *tenant.Service) *TenantHandler {
	return &TenantHandler{tenants: ts}
}

type createTenantRequest struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminName     string `json:"admin_name"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" || req.AdminEmail == "" || req.AdminPassword == "" {
		writeError(w, http.StatusBadRequest, "name, slug, admin_email and admin_password are required")
		return
	}

	t, err := h.tenants.Create(r.Context(), req.Name, req.Slug)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	user, err := h.tenants.CreateUser(r.Context(), t.ID, req.AdminEmail, req.AdminPassword, req.AdminName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create admin user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant": t,
		"user":   user,
	})
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tenants": tenants})
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	t, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type channelRequest struct {
	Platform         string `json:"platform"`
	PageID           string `json:"page_id"`
	AccessToken      string `json:"access_token"`
	VerifyToken      string `json:"verify_token"`
	TelegramBotToken string `json:"telegram_bot_token"`
}

// UpsertChannel connects or updates a messaging channel for the caller's
// tenant.
func (h *TenantHandler) UpsertChannel(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Platform {
	case "facebook", "instagram", "telegram":
	default:
		writeError(w, http.StatusBadRequest, "platform must be facebook, instagram or telegram")
		return
	}

	cfg := &models.ChannelConfig{
		TenantID:         tenantID,
		Platform:         req.Platform,
		PageID:           req.PageID,
		AccessToken:      req.AccessToken,
		VerifyToken:      req.VerifyToken,
		TelegramBotToken: req.TelegramBotToken,
	}
	if err := h.tenants.UpsertChannel(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save channel")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
