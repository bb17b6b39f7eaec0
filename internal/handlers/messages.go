package handlers

import (
	"net/http"

	"marketplace/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req services.SendMessageInput
	if !decodeJSON(w, r, &req) {
		return
	}
	message, err := h.messages.Send(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newMessageView(message))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	messages, err := h.messages.List(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapViews(messages, newMessageView))
}

func (h *Handler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	updated, err := h.messages.MarkRead(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	count, err := h.messages.UnreadCount(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": count})
}
