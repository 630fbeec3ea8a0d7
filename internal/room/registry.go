package room

import (
	"sync"

	"github.com/google/uuid"
)

// Channel is one live duplex connection to a participant. The websocket
// layer provides the real implementation; Send must not block indefinitely.
type Channel interface {
	Send(msg []byte) error
}

// Session binds one live channel to a participant's display name. Sessions
// are in-memory only; on restart all sessions are gone and clients
// reconnect.
type Session struct {
	ID       uuid.UUID
	UserName string
	RoomKey  string
	Channel  Channel
}

// Registry tracks the live sessions of one room. A user with several tabs
// open has several entries. Registry mutations are local and cheap and are
// deliberately not run under the mutation gate; only the RoomRecord changes
// they trigger are.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Channel]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Channel]*Session)}
}

// Add registers a session for ch. Multiple sessions per user are allowed;
// each channel gets its own entry.
func (r *Registry) Add(ch Channel, userName, roomKey string) *Session {
	sess := &Session{
		ID:       uuid.New(),
		UserName: userName,
		RoomKey:  roomKey,
		Channel:  ch,
	}
	r.mu.Lock()
	r.sessions[ch] = sess
	r.mu.Unlock()
	return sess
}

// Remove deregisters the session for ch, returning it. Removing an absent
// channel is a no-op and returns nil.
func (r *Registry) Remove(ch Channel) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[ch]
	if !ok {
		return nil
	}
	delete(r.sessions, ch)
	return sess
}

// Lookup returns the session registered for ch, or nil.
func (r *Registry) Lookup(ch Channel) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[ch]
}

// IsStillConnected reports whether at least one registered session belongs
// to userName.
func (r *Registry) IsStillConnected(userName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sess := range r.sessions {
		if sess.UserName == userName {
			return true
		}
	}
	return false
}

// Channels returns a snapshot of all registered channels.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.sessions))
	for ch := range r.sessions {
		out = append(out, ch)
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
