package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signage-server/signage-server-pro/internal/protocol"
)

func TestDispatchRoutesByType(t *testing.T) {
	d := NewDispatcher()

	var gotType protocol.Type
	var gotConn string
	d.Register(protocol.TypeHeartbeat, func(ctx context.Context, env *protocol.Envelope, connID string) error {
		gotType = env.Type
		gotConn = connID
		return nil
	})

	d.Handle([]byte(`{"Id":"1","Type":"HEARTBEAT","SenderId":"c1"}`), "conn-1")

	assert.Equal(t, protocol.TypeHeartbeat, gotType)
	assert.Equal(t, "conn-1", gotConn)
}

func TestDispatchDropsMalformed(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.Register(protocol.TypeHeartbeat, func(ctx context.Context, env *protocol.Envelope, connID string) error {
		called = true
		return nil
	})

	d.Handle([]byte("not json"), "conn-1")
	d.Handle([]byte(`{"Id":"1","SenderId":"c1"}`), "conn-1")

	assert.False(t, called)
}

func TestDispatchDropsUnknownType(t *testing.T) {
	d := NewDispatcher()

	// No handler registered; an unknown type must not panic or error out
	require.NotPanics(t, func() {
		d.Handle([]byte(`{"Id":"1","Type":"FUTURE_MESSAGE","SenderId":"c1"}`), "conn-1")
	})
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := NewDispatcher()
	d.Register(protocol.TypeCommand, func(ctx context.Context, env *protocol.Envelope, connID string) error {
		panic("handler bug")
	})

	require.NotPanics(t, func() {
		d.Handle([]byte(`{"Id":"1","Type":"COMMAND","SenderId":"c1"}`), "conn-1")
	})
}

func TestDispatchSwallowsHandlerErrors(t *testing.T) {
	d := NewDispatcher()
	d.Register(protocol.TypeLog, func(ctx context.Context, env *protocol.Envelope, connID string) error {
		return errors.New("downstream failure")
	})

	require.NotPanics(t, func() {
		d.Handle([]byte(`{"Id":"1","Type":"LOG","SenderId":"c1"}`), "conn-1")
	})
}
