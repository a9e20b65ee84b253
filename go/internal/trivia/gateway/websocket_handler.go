package gateway

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleTriviaConnection handles GET /ws/trivia?role=display|player
func (h *WebSocketHandler) HandleTriviaConnection(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Upgrade writes its own error response on a bad handshake
	if err := h.connectionManager.UpgradeConnection(w, r, role); err != nil {
		if errors.Is(err, ErrNoRoom) {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		}
		log.Error().
			Err(err).
			Str("role", string(role)).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/trivia", h.HandleTriviaConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
