package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/dispatch"
	"github.com/signage-server/signage-server-pro/internal/events"
	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/monitor"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registration"
	"github.com/signage-server/signage-server-pro/internal/registry"
	"github.com/signage-server/signage-server-pro/internal/transport"
)

// Coordinator ties the transport, dispatcher, and fleet services
// together. It owns the handler table and the disconnect path.
type Coordinator struct {
	hub          *transport.Hub
	dispatcher   *dispatch.Dispatcher
	registry     *registry.Registry
	registration *registration.Service
	monitor      *monitor.Monitor
	recorder     *events.Recorder
	nc           *nats.Conn // nil when the bridge is disabled
}

// NewCoordinator wires the message handler table and the disconnect
// notification into the hub
func NewCoordinator(hub *transport.Hub, reg *registry.Registry, regService *registration.Service, mon *monitor.Monitor, recorder *events.Recorder, nc *nats.Conn) *Coordinator {
	c := &Coordinator{
		hub:          hub,
		dispatcher:   dispatch.NewDispatcher(),
		registry:     reg,
		registration: regService,
		monitor:      mon,
		recorder:     recorder,
		nc:           nc,
	}

	c.dispatcher.Register(protocol.TypeRegister, c.registration.HandleRegister)
	c.dispatcher.Register(protocol.TypeHeartbeat, c.monitor.HandleHeartbeat)
	c.dispatcher.Register(protocol.TypeStatusReport, c.monitor.HandleStatusReport)
	c.dispatcher.Register(protocol.TypeScreenshot, c.handleScreenshot)
	c.dispatcher.Register(protocol.TypeLog, c.handleClientLog)
	c.dispatcher.Register(protocol.TypeUpdateConfigResponse, c.handleConfigResponse)

	hub.SetHandler(c.dispatcher)
	hub.SetDisconnectFunc(c.onDisconnect)

	return c
}

// RunEventLogger writes liveness transitions to the event log until the
// context ends
func (c *Coordinator) RunEventLogger(ctx context.Context) error {
	evs, cancel := c.registry.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-evs:
			if !ok {
				return nil
			}
			switch event.Type {
			case registry.EventConnected:
				c.recorder.Record(ctx, event.Client.ID, models.EventTypeOnline, models.EventLevelInfo,
					"client came online")
			case registry.EventDisconnected:
				c.recorder.Record(ctx, event.Client.ID, models.EventTypeOffline, models.EventLevelWarning,
					"client went offline")
			}
		}
	}
}

// onDisconnect marks a unit Offline when its authoritative session
// drops. A superseded session's disconnect changes nothing.
func (c *Coordinator) onDisconnect(connID, clientID string, authoritative bool) {
	if clientID == "" || !authoritative {
		return
	}

	ctx := context.Background()
	if err := c.registry.UpdateStatus(ctx, clientID, models.StatusOffline, nil); err != nil &&
		!errors.Is(err, registry.ErrClientNotFound) {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Msg("Failed to mark disconnected client offline")
	}
}

// handleScreenshot records a unit screenshot and republishes it on the
// bus for external consumers
func (c *Coordinator) handleScreenshot(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.ScreenshotMessage
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}
	if msg.SenderID == "" {
		return nil
	}

	log.Debug().
		Str("client_id", msg.SenderID).
		Str("format", msg.Format).
		Int("size", len(msg.Data)).
		Msg("Received screenshot")

	c.recorder.RecordDetails(ctx, msg.SenderID, models.EventTypeScreenshot, models.EventLevelInfo,
		"screenshot received",
		models.Variables{"format": msg.Format, "size": len(msg.Data)})

	c.republish(msg.SenderID, "screenshot", env.Raw())
	return nil
}

// handleClientLog records a log line reported by a unit
func (c *Coordinator) handleClientLog(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.LogMessage
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}
	if msg.SenderID == "" {
		return nil
	}

	level := models.EventLevelInfo
	switch msg.Level {
	case "DEBUG":
		level = models.EventLevelDebug
	case "WARNING", "WARN":
		level = models.EventLevelWarning
	case "ERROR":
		level = models.EventLevelError
	}

	c.recorder.Record(ctx, msg.SenderID, models.EventTypeClientLog, level, msg.Message)
	c.republish(msg.SenderID, "log", env.Raw())
	return nil
}

// handleConfigResponse records the outcome of a config push
func (c *Coordinator) handleConfigResponse(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.UpdateConfigResponse
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}
	if msg.SenderID == "" {
		return nil
	}

	if msg.Success {
		log.Info().
			Str("client_id", msg.SenderID).
			Msg("Client applied configuration")
		return nil
	}

	log.Warn().
		Str("client_id", msg.SenderID).
		Str("reason", msg.Reason).
		Msg("Client rejected configuration")
	c.recorder.RecordDetails(ctx, msg.SenderID, models.EventTypeError, models.EventLevelWarning,
		"configuration rejected",
		models.Variables{"reason": msg.Reason})
	return nil
}

// republish forwards a raw unit message to the bus, best effort
func (c *Coordinator) republish(clientID, kind string, raw json.RawMessage) {
	if c.nc == nil {
		return
	}

	subject := fmt.Sprintf("fleet.client.%s.%s", clientID, kind)
	if err := c.nc.Publish(subject, raw); err != nil {
		log.Debug().
			Err(err).
			Str("subject", subject).
			Msg("Failed to republish unit message")
	}
}
