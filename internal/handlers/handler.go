package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/room"
	"github.com/nicholasgriffintn/threatjam.com/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	hub    *room.Hub
	store  store.RoomStore
	logger zerolog.Logger
}

// NewHandler creates a new Handler over the room hub and its backing store.
func NewHandler(hub *room.Hub, st store.RoomStore, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, store: st, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// RoomError translates a room operation error to a transport response.
func (h *Handler) RoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		h.Error(w, http.StatusNotFound, "room not found")
	case errors.Is(err, room.ErrRoomAlreadyExists):
		h.Error(w, http.StatusBadRequest, "room already exists")
	case errors.Is(err, room.ErrForbidden):
		h.Error(w, http.StatusForbidden, "only the moderator can change settings")
	case errors.Is(err, room.ErrStorageUnavailable):
		h.Error(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error().Err(err).Msg("unhandled room error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// sanitizeName trims and limits a display name to 50 characters, removing
// control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Truncate on runes so a multi-byte character is never split.
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}

	return name
}
