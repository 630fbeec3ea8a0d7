package store

import (
	"context"
	"sync"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

// MemoryStore is a non-durable RoomStore kept in process memory. Used when no
// backend is configured (ephemeral rooms) and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*models.RoomRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*models.RoomRecord)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// GetRoom returns a copy of the stored record, or nil when absent.
func (s *MemoryStore) GetRoom(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// PutRoom stores a copy of the record.
func (s *MemoryStore) PutRoom(ctx context.Context, roomID string, record *models.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = record.Clone()
	return nil
}
