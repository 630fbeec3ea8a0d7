package room

import (
	"github.com/oklog/ulid/v2"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

// Outbound message types.
const (
	MessageInitialize           = "initialize"
	MessageUserJoined           = "userJoined"
	MessageUserConnectionStatus = "userConnectionStatus"
	MessageNewModerator         = "newModerator"
	MessageSettingsUpdated      = "settingsUpdated"
	MessageError                = "error"
)

// Inbound message types.
const (
	MessageUpdateSettings = "updateSettings"
)

// Message is the wire envelope for everything sent to clients. Type is
// always set; the other fields depend on it. ID is a ULID for client-side
// dedup and tracing.
type Message struct {
	ID          string             `json:"id,omitempty"`
	Type        string             `json:"type"`
	Name        string             `json:"name,omitempty"`
	User        string             `json:"user,omitempty"`
	IsConnected *bool              `json:"isConnected,omitempty"`
	Settings    *models.Settings   `json:"settings,omitempty"`
	RoomData    *models.RoomRecord `json:"roomData,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// ClientMessage is the envelope clients send over a channel. Only
// updateSettings is recognized; any other type is ignored.
type ClientMessage struct {
	Type     string           `json:"type"`
	Settings *models.Settings `json:"settings"`
}

func newInitializeMessage(record *models.RoomRecord) *Message {
	return &Message{
		ID:       ulid.Make().String(),
		Type:     MessageInitialize,
		RoomData: record,
	}
}

func newUserJoinedMessage(name string, record *models.RoomRecord) *Message {
	return &Message{
		ID:       ulid.Make().String(),
		Type:     MessageUserJoined,
		Name:     name,
		RoomData: record,
	}
}

func newConnectionStatusMessage(user string, connected bool, record *models.RoomRecord) *Message {
	return &Message{
		ID:          ulid.Make().String(),
		Type:        MessageUserConnectionStatus,
		User:        user,
		IsConnected: &connected,
		RoomData:    record,
	}
}

func newModeratorMessage(name string, record *models.RoomRecord) *Message {
	return &Message{
		ID:       ulid.Make().String(),
		Type:     MessageNewModerator,
		Name:     name,
		RoomData: record,
	}
}

func newSettingsUpdatedMessage(settings models.Settings, record *models.RoomRecord) *Message {
	return &Message{
		ID:       ulid.Make().String(),
		Type:     MessageSettingsUpdated,
		Settings: &settings,
		RoomData: record,
	}
}

func newErrorMessage(msg string) *Message {
	return &Message{
		ID:    ulid.Make().String(),
		Type:  MessageError,
		Error: msg,
	}
}
