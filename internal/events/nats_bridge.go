package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// CommandSender is the outbound command surface used by the bridge
type CommandSender interface {
	SendCommand(ctx context.Context, clientID, command string, params models.Variables) error
}

// NATSBridge republishes registry lifecycle events onto NATS subjects and
// accepts commands for display units from the bus.
//
// Published subjects:
//
//	fleet.client.<id>.connected
//	fleet.client.<id>.disconnected
//	fleet.client.<id>.status
//
// Subscribed subjects:
//
//	fleet.client.<id>.command
type NATSBridge struct {
	nc       *nats.Conn
	registry *registry.Registry
	sender   CommandSender
	subs     []*nats.Subscription
}

// NewNATSBridge creates a NATS event bridge
func NewNATSBridge(nc *nats.Conn, reg *registry.Registry, sender CommandSender) *NATSBridge {
	return &NATSBridge{
		nc:       nc,
		registry: reg,
		sender:   sender,
		subs:     make([]*nats.Subscription, 0),
	}
}

// clientEvent is the wire shape of a published fleet event
type clientEvent struct {
	ClientID     string    `json:"clientId"`
	Name         string    `json:"name"`
	Group        string    `json:"group,omitempty"`
	Status       string    `json:"status"`
	HardwareAddr string    `json:"hardwareAddr"`
	Timestamp    time.Time `json:"timestamp"`
}

// commandRequest is the wire shape of an inbound command
type commandRequest struct {
	Command    string           `json:"command"`
	Parameters models.Variables `json:"parameters,omitempty"`
}

// Start runs the bridge until the context ends
func (b *NATSBridge) Start(ctx context.Context) error {
	sub, err := b.nc.Subscribe("fleet.client.*.command", b.handleCommand)
	if err != nil {
		return fmt.Errorf("subscribe fleet commands: %w", err)
	}
	b.subs = append(b.subs, sub)

	events, cancel := b.registry.Subscribe(64)
	defer cancel()

	log.Info().
		Int("subscriptions", len(b.subs)).
		Msg("NATS event bridge started")

	for {
		select {
		case <-ctx.Done():
			for _, s := range b.subs {
				s.Unsubscribe()
			}
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(event)
		}
	}
}

func (b *NATSBridge) publish(event registry.Event) {
	var suffix string
	switch event.Type {
	case registry.EventConnected:
		suffix = "connected"
	case registry.EventDisconnected:
		suffix = "disconnected"
	case registry.EventStatusChanged:
		suffix = "status"
	default:
		return
	}

	payload := clientEvent{
		ClientID:     event.Client.ID,
		Name:         event.Client.Name,
		Group:        event.Client.GroupName,
		Status:       string(event.Client.Status),
		HardwareAddr: event.Client.HardwareAddr,
		Timestamp:    event.At,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal client event")
		return
	}

	subject := fmt.Sprintf("fleet.client.%s.%s", event.Client.ID, suffix)
	if err := b.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("Failed to publish client event")
	}
}

// handleCommand forwards a bus command to the targeted display unit
func (b *NATSBridge) handleCommand(msg *nats.Msg) {
	parts := strings.Split(msg.Subject, ".")
	if len(parts) != 4 {
		return
	}
	clientID := parts[2]

	var req commandRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject).
			Msg("Failed to unmarshal bus command")
		return
	}
	if req.Command == "" {
		return
	}

	if err := b.sender.SendCommand(context.Background(), clientID, req.Command, req.Parameters); err != nil {
		log.Warn().
			Err(err).
			Str("client_id", clientID).
			Str("command", req.Command).
			Msg("Failed to deliver bus command")
	}
}
