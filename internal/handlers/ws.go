package handlers

import (
	"net/http"

	"marketplace/internal/websocket"
)

// WSEvents streams the caller's booking and wallet events. Authentication
// already happened in middleware.Auth, which accepts ?token= for browsers.
func (h *Handler) WSEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.hub, actor.ID)
}
