package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicholasgriffintn/threatjam.com/internal/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Room keys are unguessable; the websocket layer does not add an
	// origin check on top of that.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errChannelClosed = errors.New("websocket channel closed")

// wsChannel adapts a gorilla connection to the room.Channel contract. All
// writes go through a buffered channel drained by writePump, so Send never
// blocks on a slow peer; when the buffer is full the message is dropped and
// the error surfaces as a per-session delivery failure.
type wsChannel struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send queues msg for delivery.
func (c *wsChannel) Send(msg []byte) error {
	select {
	case <-c.closed:
		return errChannelClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errors.New("websocket send buffer full")
	}
}

// writePump drains the send buffer onto the wire and keeps the connection
// alive with pings. One writer goroutine per connection; gorilla allows at
// most one concurrent writer.
func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// ServeWS upgrades the connection and runs the channel lifecycle: register
// and announce via Connect, pump inbound messages to the coordinator, and
// on any read error tear the session down via Disconnect.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	key, ok := h.roomKeyParam(w, r)
	if !ok {
		return
	}
	name := sanitizeName(r.URL.Query().Get("name"))
	if name == "" {
		h.Error(w, http.StatusUnprocessableEntity, "name query parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := newWSChannel(conn)
	go ch.writePump()

	coordinator := h.hub.Room(key)
	if err := coordinator.Connect(r.Context(), ch, name); err != nil {
		h.logger.Error().Err(err).Str("user", name).Msg("websocket connect failed")
	}

	h.readPump(coordinator, ch)
}

// readPump reads until the peer goes away, then triggers Disconnect. The
// disconnect runs on a fresh bounded context: the request context dies with
// the connection, but the room mutation it triggers still has to complete.
func (h *Handler) readPump(coordinator *room.Coordinator, ch *wsChannel) {
	defer func() {
		close(ch.closed)

		ctx, cancel := context.WithTimeout(context.Background(), room.DefaultOpTimeout)
		defer cancel()
		if err := coordinator.Disconnect(ctx, ch); err != nil {
			h.logger.Error().Err(err).Msg("websocket disconnect failed")
		}
	}()

	ch.conn.SetReadLimit(maxMessageSize)
	ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPongHandler(func(string) error {
		ch.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		coordinator.HandleChannelMessage(context.Background(), ch, payload)
	}
}
