package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/protocol"
)

// HandlerFunc processes one decoded envelope from a connection
type HandlerFunc func(ctx context.Context, env *protocol.Envelope, connID string) error

// Dispatcher routes inbound envelopes to handlers by message type. The
// table is built at startup via Register; there is no runtime mutation,
// so lookups need no locking.
type Dispatcher struct {
	handlers map[protocol.Type]HandlerFunc
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.Type]HandlerFunc),
	}
}

// Register installs the handler for a message type. Call only during
// startup, before the transport accepts connections.
func (d *Dispatcher) Register(t protocol.Type, h HandlerFunc) {
	d.handlers[t] = h
}

// Handle decodes a wire frame and routes it. Malformed frames are logged
// and dropped; unknown types are dropped at debug level so newer units
// cannot crash an older coordinator. Handler panics and errors stop at
// this boundary.
func (d *Dispatcher) Handle(data []byte, connID string) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().
			Err(err).
			Str("conn_id", connID).
			Int("size", len(data)).
			Msg("Dropping malformed message")
		return
	}

	handler, ok := d.handlers[env.Type]
	if !ok {
		log.Debug().
			Str("type", string(env.Type)).
			Str("conn_id", connID).
			Msg("No handler for message type")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("type", string(env.Type)).
				Str("conn_id", connID).
				Msg("Handler panicked")
		}
	}()

	if err := handler(context.Background(), env, connID); err != nil {
		if errors.Is(err, protocol.ErrMalformedMessage) {
			log.Warn().
				Err(err).
				Str("type", string(env.Type)).
				Str("conn_id", connID).
				Msg("Dropping malformed payload")
			return
		}
		log.Error().
			Err(err).
			Str("type", string(env.Type)).
			Str("conn_id", connID).
			Msg("Handler failed")
	}
}
