package room

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler serves WebSocket upgrade requests for room connections.
type Handler struct {
	manager *Manager
}

// NewHandler creates a handler backed by the given manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// HandleRoomConnection upgrades a request identified by `room` and
// `participant` query parameters.
func (h *Handler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	// In production the participant identity would come from a session
	// token; an absent parameter gets a generated identity.
	participantID := r.URL.Query().Get("participant")
	if participantID == "" {
		participantID = uuid.New().String()
	}

	if err := h.manager.UpgradeConnection(w, r, participantID, roomID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("participant_id", participantID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleStats reports active rooms, connection counts, and rosters.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.manager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
