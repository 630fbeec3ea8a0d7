package room

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/metrics"
)

// Dispatcher fans messages out to every session in a registry. Delivery is
// best-effort and at-most-once: a broken channel is skipped, never retried,
// and never fails the operation that triggered the broadcast. Clients that
// miss messages catch up through the initialize handshake on reconnect.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Broadcast sends msg to every registered session.
func (d *Dispatcher) Broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error().Err(err).Str("type", msg.Type).Msg("broadcast marshal failed")
		return
	}

	for _, ch := range d.registry.Channels() {
		if err := ch.Send(data); err != nil {
			// One dead channel only means that client is gone.
			metrics.BroadcastSendFailures.Inc()
			d.logger.Debug().Err(err).Str("type", msg.Type).Msg("dropping broadcast to dead channel")
		}
	}

	metrics.BroadcastsTotal.WithLabelValues(msg.Type).Inc()
}

// SendTo sends msg to a single channel.
func (d *Dispatcher) SendTo(ch Channel, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Send(data)
}
