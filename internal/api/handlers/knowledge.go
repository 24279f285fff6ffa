package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dotstark/ragserve/internal/auth"
	"github.com/dotstark/ragserve/internal/knowledge"
	"github.com/dotstark/ragserve/pkg/textextract"
)

// maxUploadBytes caps a single knowledge base upload.
const maxUploadBytes = 25 << 20

type KnowledgeHandler struct {
	knowledge *knowledge.Service
	scheduler knowledge.ReindexScheduler
}

func NewKnowledgeHandler(ks *knowledge.Service, scheduler knowledge.ReindexScheduler) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: ks, scheduler: scheduler}
}

func callerTenantID(r *http.Request) (uuid.UUID, bool) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.TenantID)
	return id, err == nil
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	items, err := h.knowledge.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list knowledge items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// Upload accepts one document as multipart form data under the "file"
// field and schedules a re-index.
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !textextract.Supported(path.Ext(header.Filename)) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document format")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	item, err := h.knowledge.AddFile(r.Context(), tenantID, path.Base(header.Filename), data, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type addURLRequest struct {
	URL string `json:"url"`
}

func (h *KnowledgeHandler) AddURL(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	var req addURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	item, err := h.knowledge.AddURL(r.Context(), tenantID, req.URL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register url")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateURL repoints a registered web source and schedules a re-index.
func (h *KnowledgeHandler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req addURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	item, err := h.knowledge.UpdateURL(r.Context(), tenantID, itemID, req.URL)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.knowledge.Delete(r.Context(), tenantID, itemID); err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reindex lets an admin force a rebuild without touching the knowledge
// base.
func (h *KnowledgeHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := callerTenantID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid tenant in token")
		return
	}

	if err := h.scheduler.EnqueueReindex(r.Context(), tenantID.String()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to schedule reindex")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
