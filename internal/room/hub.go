package room

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/store"
)

// DefaultOpTimeout bounds gate-protected store I/O. A hung backend fails
// the operation with ErrStorageUnavailable instead of holding the gate.
const DefaultOpTimeout = 5 * time.Second

// Hub is the routing table from room identifier to the one coordinator that
// owns it. Coordinators are created lazily on first access and live for the
// rest of the process; this gives single-writer-per-room within one
// process. Running several processes against the same store requires
// room-affine routing in front, which is a deployment concern.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]*Coordinator
	store     store.RoomStore
	logger    zerolog.Logger
	opTimeout time.Duration
}

// NewHub creates an empty hub over the given store. A non-positive
// opTimeout falls back to DefaultOpTimeout.
func NewHub(st store.RoomStore, logger zerolog.Logger, opTimeout time.Duration) *Hub {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Hub{
		rooms:     make(map[string]*Coordinator),
		store:     st,
		logger:    logger,
		opTimeout: opTimeout,
	}
}

// Room returns the coordinator owning the room addressed by roomKey,
// creating it if this is the first access. Keys are case-insensitive: two
// spellings of the same key route to the same coordinator.
func (h *Hub) Room(roomKey string) *Coordinator {
	id := KeyToRoomID(roomKey)

	h.mu.RLock()
	c, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return c
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.rooms[id]; ok {
		return c
	}
	c = NewCoordinator(roomKey, h.store, h.logger, h.opTimeout)
	h.rooms[id] = c
	return c
}

// Len returns the number of active coordinators.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
