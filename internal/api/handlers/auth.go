package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dotstark/ragserve/internal/auth"
	"github.com/dotstark/ragserve/internal/tenant"
)

type AuthHandler struct {
	tenants *tenant.Service
	auth    *auth.Service
}

func NewAuthHandler(ts *tenant.Service, as *auth.Service) *AuthHandler {
	return &AuthHandler{tenants: ts, auth: as}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.tenants.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !h.tenants.VerifyPassword(user, req.Password) {
		// Identical response for unknown email and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}
