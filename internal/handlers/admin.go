package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

func (h *Handler) VerifyProvider(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req := verifyRequest{}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}
	profile, err := h.admin.VerifyProvider(r.Context(), actor, chi.URLParam(r, "id"), verified)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	entries, err := h.admin.AuditLog(r.Context(), actor, r.URL.Query().Get("entity_type"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
