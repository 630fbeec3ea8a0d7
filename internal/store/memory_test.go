package store

import (
	"context"
	"testing"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

func TestMemoryStoreReadYourWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for absent room")
	}

	rec := models.NewRoomRecord()
	rec.Key = "my-room"
	rec.Users = []string{"alice"}
	if err := s.PutRoom(ctx, "r1", rec); err != nil {
		t.Fatal(err)
	}

	got, err = s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Key != "my-room" {
		t.Fatalf("put not observed by get: %+v", got)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := models.NewRoomRecord()
	rec.Key = "my-room"
	rec.Users = []string{"alice"}
	if err := s.PutRoom(ctx, "r1", rec); err != nil {
		t.Fatal(err)
	}

	// Mutating what the caller holds must not change the stored value.
	rec.Users = append(rec.Users, "mallory")

	got, _ := s.GetRoom(ctx, "r1")
	if len(got.Users) != 1 {
		t.Errorf("store shares memory with caller: %v", got.Users)
	}

	// And mutating what a reader got must not either.
	got.Users[0] = "mallory"
	again, _ := s.GetRoom(ctx, "r1")
	if again.Users[0] != "alice" {
		t.Error("store shares memory with reader")
	}
}
