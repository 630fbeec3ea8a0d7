package room

import "context"

// Gate serializes room-state read-modify-write sequences. At most one
// critical section runs at a time; the rest queue. Without it two
// simultaneous joins could both read the same member list and each write
// back a copy missing the other's append.
type Gate struct {
	sem chan struct{}
}

// NewGate creates an unlocked gate.
func NewGate() *Gate {
	return &Gate{sem: make(chan struct{}, 1)}
}

// RunExclusive runs fn while holding the gate. Callers waiting on a held
// gate block until it frees or their context is done.
func (g *Gate) RunExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.sem }()
	return fn(ctx)
}
