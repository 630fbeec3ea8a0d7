package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nicholasgriffintn/threatjam.com/internal/metrics"
	"github.com/nicholasgriffintn/threatjam.com/internal/models"
	"github.com/nicholasgriffintn/threatjam.com/internal/room"
)

// RoomRequest is the body for create and join.
type RoomRequest struct {
	Name string `json:"name"`
}

// UpdateSettingsRequest is the body for the request-driven settings update.
type UpdateSettingsRequest struct {
	Name     string          `json:"name"`
	Settings models.Settings `json:"settings"`
}

// roomKeyParam extracts and validates the room key from the URL, writing an
// error response when invalid.
func (h *Handler) roomKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "roomKey")
	if !room.ValidKey(key) {
		h.Error(w, http.StatusBadRequest, "room key must be 4-64 characters, alphanumeric with hyphens and underscores only")
		return "", false
	}
	return key, true
}

// nameFromBody decodes a RoomRequest and validates the display name.
func (h *Handler) nameFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusUnprocessableEntity, "name is required")
		return "", false
	}
	return name, true
}

// CreateRoom handles room creation. The caller becomes the first member and
// moderator.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	key, ok := h.roomKeyParam(w, r)
	if !ok {
		return
	}
	name, ok := h.nameFromBody(w, r)
	if !ok {
		return
	}

	record, err := h.hub.Room(key).Create(r.Context(), name)
	if err != nil {
		h.RoomError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, record)
}

// JoinRoom adds the caller to an existing room.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	key, ok := h.roomKeyParam(w, r)
	if !ok {
		return
	}
	name, ok := h.nameFromBody(w, r)
	if !ok {
		return
	}

	record, err := h.hub.Room(key).Join(r.Context(), name)
	if err != nil {
		h.RoomError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, record)
}

// GetSettings returns the room's current settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	key, ok := h.roomKeyParam(w, r)
	if !ok {
		return
	}

	settings, err := h.hub.Room(key).GetSettings(r.Context())
	if err != nil {
		h.RoomError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, settings)
}

// UpdateSettings merges a settings patch into the room. Moderator only; a
// non-moderator gets 403 on this path, unlike the channel path which drops
// the update silently.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	key, ok := h.roomKeyParam(w, r)
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	settings, err := h.hub.Room(key).UpdateSettings(r.Context(), name, req.Settings)
	if err != nil {
		h.RoomError(w, err)
		return
	}

	metrics.SettingsUpdates.WithLabelValues("request").Inc()
	h.JSON(w, http.StatusOK, settings)
}
