package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/metrics"
	"github.com/nicholasgriffintn/threatjam.com/internal/models"
	"github.com/nicholasgriffintn/threatjam.com/internal/store"
)

// Coordinator owns one room for the lifetime of the process. Every
// read-modify-write of the room's record runs inside the mutation gate, so
// concurrent requests and channel events against the same room are
// linearized. Broadcasts are emitted only after the gate has been released,
// in the order their mutations committed; a stalled client can never hold
// up a mutation.
type Coordinator struct {
	roomKey    string
	roomID     string
	store      store.RoomStore
	gate       *Gate
	registry   *Registry
	dispatcher *Dispatcher
	logger     zerolog.Logger
	opTimeout  time.Duration

	// sendMu serializes post-commit sends. It is acquired while the gate
	// is still held, so send order always matches commit order.
	sendMu sync.Mutex
}

// NewCoordinator creates the coordinator for one room.
func NewCoordinator(roomKey string, st store.RoomStore, logger zerolog.Logger, opTimeout time.Duration) *Coordinator {
	key := NormalizeKey(roomKey)
	registry := NewRegistry()
	roomLogger := logger.With().Str("room", KeyToRoomID(key)[:12]).Logger()
	return &Coordinator{
		roomKey:    key,
		roomID:     KeyToRoomID(key),
		store:      st,
		gate:       NewGate(),
		registry:   registry,
		dispatcher: NewDispatcher(registry, roomLogger),
		logger:     roomLogger,
		opTimeout:  opTimeout,
	}
}

// RoomID returns the durable identifier this coordinator owns.
func (c *Coordinator) RoomID() string { return c.roomID }

// Registry exposes the session registry for connection bookkeeping.
func (c *Coordinator) Registry() *Registry { return c.registry }

// outbound is one post-commit message. A nil target broadcasts to every
// session in the room.
type outbound struct {
	msg *Message
	to  Channel
}

// mutate runs fn on the current record inside the mutation gate, persists
// the record, then emits fn's messages and returns a snapshot of the
// persisted state. If fn errors nothing is persisted and nothing is sent.
// Store calls run under a bounded timeout so a hung backend fails the
// operation instead of holding the gate forever. sendMu is taken before
// the gate releases and held through the sends: messages leave in commit
// order, but always outside the gate.
func (c *Coordinator) mutate(ctx context.Context, fn func(rec *models.RoomRecord) ([]outbound, error)) (*models.RoomRecord, error) {
	var (
		snapshot *models.RoomRecord
		out      []outbound
	)

	err := c.gate.RunExclusive(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()

		rec, err := c.getRecord(ctx)
		if err != nil {
			return err
		}

		msgs, err := fn(rec)
		if err != nil {
			return err
		}

		if err := c.putRecord(ctx, rec); err != nil {
			return err
		}

		snapshot = rec.Clone()
		out = msgs
		c.sendMu.Lock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer c.sendMu.Unlock()

	for _, o := range out {
		if o.to != nil {
			if err := c.dispatcher.SendTo(o.to, o.msg); err != nil {
				c.logger.Debug().Err(err).Str("type", o.msg.Type).Msg("direct send failed")
			}
			continue
		}
		c.dispatcher.Broadcast(o.msg)
	}
	return snapshot, nil
}

func (c *Coordinator) getRecord(ctx context.Context) (*models.RoomRecord, error) {
	start := time.Now()
	rec, err := c.store.GetRoom(ctx, c.roomID)
	metrics.StoreLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if rec == nil {
		rec = models.NewRoomRecord()
	}
	// One-shot schema upgrade for records written before connection
	// tracking existed. The upgraded record is persisted by the enclosing
	// mutation.
	rec.Upgrade()
	return rec, nil
}

func (c *Coordinator) putRecord(ctx context.Context, rec *models.RoomRecord) error {
	start := time.Now()
	err := c.store.PutRoom(ctx, c.roomID, rec)
	metrics.StoreLatency.WithLabelValues("put").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Create initializes the room with userName as the first member and
// moderator. Fails with ErrRoomAlreadyExists if the room was already
// created. A record that exists but was never initialized (empty key) is
// treated the same as an absent one. No broadcast: no sessions exist yet.
func (c *Coordinator) Create(ctx context.Context, userName string) (*models.RoomRecord, error) {
	snapshot, err := c.mutate(ctx, func(rec *models.RoomRecord) ([]outbound, error) {
		if rec.Initialized() {
			return nil, ErrRoomAlreadyExists
		}
		rec.Key = c.roomKey
		rec.Users = []string{userName}
		rec.Moderator = userName
		rec.ConnectedUsers = map[string]bool{userName: true}
		rec.Settings = models.Settings{}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RoomsCreated.Inc()
	c.logger.Info().Str("user", userName).Msg("room created")
	return snapshot, nil
}

// Join adds userName to an existing room. New joiners always append to the
// end of the member list, keeping the moderator-failover order stable. The
// joining user's own channel, if any, is registered separately through
// Connect and receives full state via its initialize handshake.
func (c *Coordinator) Join(ctx context.Context, userName string) (*models.RoomRecord, error) {
	snapshot, err := c.mutate(ctx, func(rec *models.RoomRecord) ([]outbound, error) {
		if !rec.Initialized() {
			return nil, ErrRoomNotFound
		}
		if !rec.HasUser(userName) {
			rec.Users = append(rec.Users, userName)
		}
		rec.ConnectedUsers[userName] = true
		return []outbound{{msg: newUserJoinedMessage(userName, rec.Clone())}}, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RoomJoins.Inc()
	c.logger.Info().Str("user", userName).Msg("user joined")
	return snapshot, nil
}

// Connect handles a newly opened channel for userName. The session is
// registered immediately, before the room lookup, so channel teardown stays
// uniform even when the lookup fails. After the mutation commits the full
// record is sent once, directly and only to the new channel, tagged
// initialize; this guarantees the new client sees complete state exactly
// once even if it raced with other mutations.
func (c *Coordinator) Connect(ctx context.Context, ch Channel, userName string) error {
	c.registry.Add(ch, userName, c.roomKey)
	metrics.ActiveSessions.Inc()

	_, err := c.mutate(ctx, func(rec *models.RoomRecord) ([]outbound, error) {
		if !rec.HasUser(userName) {
			rec.Users = append(rec.Users, userName)
		}
		rec.ConnectedUsers[userName] = true
		return []outbound{
			{msg: newConnectionStatusMessage(userName, true, rec.Clone())},
			{msg: newInitializeMessage(rec.Clone()), to: ch},
		}, nil
	})
	if err != nil {
		// The session stays registered; the client keeps its channel and
		// can retry by reconnecting.
		c.logger.Error().Err(err).Str("user", userName).Msg("connect mutation failed")
		return err
	}

	c.logger.Info().Str("user", userName).Msg("channel connected")
	return nil
}

// Disconnect handles a closed channel. Only the last session of a user
// marks them disconnected; closing one of several tabs changes nothing. If
// the disconnecting user was the moderator, the earliest joiner still
// connected is promoted. When nobody is connected the moderator is left in
// place until someone returns.
func (c *Coordinator) Disconnect(ctx context.Context, ch Channel) error {
	sess := c.registry.Remove(ch)
	if sess == nil {
		return nil
	}
	metrics.ActiveSessions.Dec()

	if c.registry.IsStillConnected(sess.UserName) {
		return nil
	}

	_, err := c.mutate(ctx, func(rec *models.RoomRecord) ([]outbound, error) {
		rec.ConnectedUsers[sess.UserName] = false
		msgs := []outbound{{msg: newConnectionStatusMessage(sess.UserName, false, rec.Clone())}}

		if rec.Moderator == sess.UserName {
			for _, u := range rec.Users {
				if rec.ConnectedUsers[u] {
					rec.Moderator = u
					msgs = append(msgs, outbound{msg: newModeratorMessage(u, rec.Clone())})
					metrics.ModeratorFailovers.Inc()
					break
				}
			}
		}
		return msgs, nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("user", sess.UserName).Msg("disconnect mutation failed")
		return err
	}

	c.logger.Info().Str("user", sess.UserName).Msg("user disconnected")
	return nil
}

// GetSettings returns the room's current settings. Read-only: no gate, no
// broadcast. The backing stores serve single-key reads atomically.
func (c *Coordinator) GetSettings(ctx context.Context) (models.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	start := time.Now()
	rec, err := c.store.GetRoom(ctx, c.roomID)
	metrics.StoreLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if rec == nil || !rec.Initialized() {
		return models.Settings{}, ErrRoomNotFound
	}
	return rec.Settings.Clone(), nil
}

// UpdateSettings shallow-merges patch into the room settings. Only the
// moderator may do this; anyone else gets ErrForbidden. Keys absent from
// patch are preserved.
func (c *Coordinator) UpdateSettings(ctx context.Context, userName string, patch models.Settings) (models.Settings, error) {
	snapshot, err := c.mutate(ctx, func(rec *models.RoomRecord) ([]outbound, error) {
		if !rec.Initialized() {
			return nil, ErrRoomNotFound
		}
		if rec.Moderator != userName {
			return nil, ErrForbidden
		}
		rec.Settings = rec.Settings.Merge(patch)
		return []outbound{{msg: newSettingsUpdatedMessage(rec.Settings.Clone(), rec.Clone())}}, nil
	})
	if err != nil {
		return models.Settings{}, err
	}

	c.logger.Info().Str("user", userName).Msg("settings updated")
	return snapshot.Settings, nil
}

// HandleChannelMessage processes a raw payload received on ch. Malformed
// payloads get a single error reply to the offending channel only.
// updateSettings from a non-moderator is dropped silently: the guard exists
// to protect shared state, not to explain itself. Unknown message types are
// ignored.
func (c *Coordinator) HandleChannelMessage(ctx context.Context, ch Channel, payload []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		if sendErr := c.dispatcher.SendTo(ch, newErrorMessage("malformed message")); sendErr != nil {
			c.logger.Debug().Err(sendErr).Msg("error reply send failed")
		}
		return
	}

	switch msg.Type {
	case MessageUpdateSettings:
		sess := c.registry.Lookup(ch)
		if sess == nil {
			return
		}
		var patch models.Settings
		if msg.Settings != nil {
			patch = *msg.Settings
		}
		_, err := c.UpdateSettings(ctx, sess.UserName, patch)
		switch {
		case err == nil:
			metrics.SettingsUpdates.WithLabelValues("channel").Inc()
		case errors.Is(err, ErrForbidden), errors.Is(err, ErrRoomNotFound):
			// Dropped silently on the channel path.
		default:
			c.logger.Error().Err(err).Str("user", sess.UserName).Msg("channel settings update failed")
		}
	default:
		// Unknown types are ignored.
	}
}
