package threatjam

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelMessage is one server-to-client event.
type ChannelMessage struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Name        string          `json:"name,omitempty"`
	User        string          `json:"user,omitempty"`
	IsConnected *bool           `json:"isConnected,omitempty"`
	Settings    Settings        `json:"settings,omitempty"`
	RoomData    *RoomRecord     `json:"roomData,omitempty"`
	Error       string          `json:"error,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// RoomChannel is a live connection to a room. Messages arrive on the
// handler passed to Listen; the first one is always an initialize carrying
// full room state.
type RoomChannel struct {
	conn *websocket.Conn
}

// OpenChannel connects a live channel to the room as name.
func (c *Client) OpenChannel(roomKey, name string) (*RoomChannel, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1)
	endpoint := fmt.Sprintf("%s%s/ws?name=%s", wsURL, roomPath(roomKey), url.QueryEscape(name))

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &RoomChannel{conn: conn}, nil
}

// Listen reads messages until the channel closes or handler returns false.
func (ch *RoomChannel) Listen(handler func(msg *ChannelMessage) bool) error {
	for {
		_, payload, err := ch.conn.ReadMessage()
		if err != nil {
			return err
		}

		msg := &ChannelMessage{}
		if err := json.Unmarshal(payload, msg); err != nil {
			continue
		}
		msg.Raw = payload

		if !handler(msg) {
			return nil
		}
	}
}

// UpdateSettings sends a settings patch over the channel. The server only
// applies it when this session's user is the moderator; otherwise it is
// dropped without a reply.
func (ch *RoomChannel) UpdateSettings(patch Settings) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":     "updateSettings",
		"settings": patch,
	})
	if err != nil {
		return err
	}
	ch.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ch.conn.WriteMessage(websocket.TextMessage, body)
}

// Close closes the channel.
func (ch *RoomChannel) Close() error {
	ch.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return ch.conn.Close()
}
