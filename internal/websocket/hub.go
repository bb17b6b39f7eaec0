package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"marketplace/internal/metrics"
)

// Event is the compact payload pushed to a user's sockets. It never carries
// chat bodies.
type Event struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	origins map[string]struct{}
}

// NewHub returns a hub that accepts upgrades from the given origins; "*" or an
// empty list allows any origin.
func NewHub(origins []string) *Hub {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[origin] = struct{}{}
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		origins: allowed,
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	if _, exists := h.clients[userID][client]; !exists {
		metrics.WebsocketClients.Inc()
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	if _, exists := h.clients[userID][client]; !exists {
		return
	}
	delete(h.clients[userID], client)
	metrics.WebsocketClients.Dec()
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Publish delivers event to every socket of userID. Slow clients drop events
// rather than block the caller.
func (h *Hub) Publish(userID string, event Event) int {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, _ := json.Marshal(event)
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) allowOrigin(origin string) bool {
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}
