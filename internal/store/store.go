package store

import (
	"context"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

// RoomStore is the durable key-value contract the room coordinator needs:
// get/put of a whole RoomRecord under a room identifier, with read-your-writes
// within a single process. All backends (SQLite, Postgres, Redis, memory)
// implement it.
type RoomStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// GetRoom returns the record stored under roomID, or (nil, nil) when no
	// record exists yet.
	GetRoom(ctx context.Context, roomID string) (*models.RoomRecord, error)

	// PutRoom replaces the record stored under roomID. The write is atomic:
	// either the new record is fully visible or the prior one still is.
	PutRoom(ctx context.Context, roomID string, record *models.RoomRecord) error
}
