package models

// RecordVersion is the current RoomRecord schema version. Records persisted
// by older builds are upgraded in place when loaded (see Upgrade).
const RecordVersion = 2

// RoomRecord is the canonical state of one room. It is stored as a single
// durable value keyed by the room identifier and always written whole.
type RoomRecord struct {
	// Key is the opaque room key. Empty until the room has been created.
	Key string `json:"key"`

	// Users holds participant display names in join order. Order matters:
	// moderator failover promotes the earliest joiner still connected.
	Users []string `json:"users"`

	// Moderator is the display name currently holding moderator privileges.
	Moderator string `json:"moderator"`

	// ConnectedUsers maps display name to "has at least one live session".
	ConnectedUsers map[string]bool `json:"connectedUsers"`

	Settings Settings `json:"settings"`

	Version int `json:"version"`
}

// NewRoomRecord returns an uninitialized record for a room that has not been
// created yet.
func NewRoomRecord() *RoomRecord {
	return &RoomRecord{
		Users:          []string{},
		ConnectedUsers: map[string]bool{},
		Version:        RecordVersion,
	}
}

// Initialized reports whether the room has been through Create.
func (r *RoomRecord) Initialized() bool {
	return r.Key != ""
}

// HasUser reports whether name is already a member of the room.
func (r *RoomRecord) HasUser(name string) bool {
	for _, u := range r.Users {
		if u == name {
			return true
		}
	}
	return false
}

// Upgrade migrates a record written by an older build to the current schema.
// Version 1 records predate connection tracking; every member missing from
// ConnectedUsers is backfilled as disconnected. Returns true if the record
// was changed and should be written back.
func (r *RoomRecord) Upgrade() bool {
	if r.Version >= RecordVersion {
		return false
	}
	if r.ConnectedUsers == nil {
		r.ConnectedUsers = map[string]bool{}
	}
	for _, u := range r.Users {
		if _, ok := r.ConnectedUsers[u]; !ok {
			r.ConnectedUsers[u] = false
		}
	}
	r.Version = RecordVersion
	return true
}

// Clone returns a deep copy. Broadcasts carry snapshots, never the live
// record, so a slow consumer can never observe a half-applied mutation.
func (r *RoomRecord) Clone() *RoomRecord {
	out := &RoomRecord{
		Key:            r.Key,
		Users:          make([]string, len(r.Users)),
		Moderator:      r.Moderator,
		ConnectedUsers: make(map[string]bool, len(r.ConnectedUsers)),
		Settings:       r.Settings.Clone(),
		Version:        r.Version,
	}
	copy(out.Users, r.Users)
	for k, v := range r.ConnectedUsers {
		out.ConnectedUsers[k] = v
	}
	return out
}
