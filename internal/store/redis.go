package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

// RedisStore persists room records in Redis. Each room is one JSON value
// under a namespaced key; Redis serves single-key reads and writes
// atomically, which is all the coordinator requires.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() {
	s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomRecordKey returns the key holding a room's record.
func roomRecordKey(roomID string) string {
	return fmt.Sprintf("room:%s:record", roomID)
}

// GetRoom retrieves the record stored under roomID.
func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	raw, err := s.client.Get(ctx, roomRecordKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	record := &models.RoomRecord{}
	if err := json.Unmarshal([]byte(raw), record); err != nil {
		return nil, err
	}
	return record, nil
}

// PutRoom stores the record under roomID. Rooms have no TTL; garbage
// collection of abandoned rooms is an operational concern.
func (s *RedisStore) PutRoom(ctx context.Context, roomID string, record *models.RoomRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, roomRecordKey(roomID), raw, 0).Err()
}
