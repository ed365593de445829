package distributor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// ErrContentNotFound indicates an unknown content identifier
var ErrContentNotFound = errors.New("content not found")

// ContentDescriptor is content metadata plus its unrendered template
type ContentDescriptor struct {
	ID       string
	Name     string
	Template json.RawMessage

	// DataSources binds names to external data the template references
	DataSources map[string]string
}

// Content is a fully resolved piece of displayable content
type Content struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// ContentStore loads content metadata. It is an external collaborator;
// the distributor only consumes it.
type ContentStore interface {
	GetContent(ctx context.Context, contentID string) (*ContentDescriptor, error)
}

// TemplateResolver renders a descriptor with its bound data sources into
// a deliverable payload. Resolution failures are per-push errors, never
// fatal to a batch.
type TemplateResolver interface {
	Resolve(ctx context.Context, descriptor *ContentDescriptor) (json.RawMessage, error)
}

// SessionHub is the transport surface consumed by the distributor
type SessionHub interface {
	SendToClient(clientID string, data []byte) error
	IsConnected(clientID string) bool
}

// EventRecorder persists audit events for content pushes
type EventRecorder interface {
	Record(ctx context.Context, clientID string, eventType models.EventType, level models.EventLevel, description string)
}

// Distributor delivers resolved content to display units and records the
// assignment so offline units catch up on reconnect
type Distributor struct {
	registry *registry.Registry
	contents ContentStore
	resolver TemplateResolver
	hub      SessionHub
	events   EventRecorder
	serverID string
}

// New creates a distributor
func New(reg *registry.Registry, contents ContentStore, resolver TemplateResolver, hub SessionHub, events EventRecorder, serverID string) *Distributor {
	return &Distributor{
		registry: reg,
		contents: contents,
		resolver: resolver,
		hub:      hub,
		events:   events,
		serverID: serverID,
	}
}

// resolve loads and renders one content descriptor
func (d *Distributor) resolve(ctx context.Context, contentID string) (*Content, error) {
	descriptor, err := d.contents.GetContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", contentID, err)
	}

	payload, err := d.resolver.Resolve(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("resolve content %s: %w", contentID, err)
	}

	return &Content{
		ID:      descriptor.ID,
		Name:    descriptor.Name,
		Payload: payload,
	}, nil
}

// Push assigns content to one unit and delivers it when the unit is
// connected. An offline unit only gets the assignment recorded; delivery
// happens on its next registration.
func (d *Distributor) Push(ctx context.Context, clientID, contentID string) error {
	content, err := d.resolve(ctx, contentID)
	if err != nil {
		return err
	}

	if err := d.registry.AssignContent(ctx, clientID, content.ID); err != nil {
		return err
	}

	if !d.hub.IsConnected(clientID) {
		log.Info().
			Str("client_id", clientID).
			Str("content_id", content.ID).
			Msg("Client offline, content assignment deferred")
		return nil
	}

	if err := d.deliver(clientID, content); err != nil {
		return err
	}

	if d.events != nil {
		d.events.Record(ctx, clientID, models.EventTypeContentPushed, models.EventLevelInfo,
			"content "+content.ID+" pushed")
	}
	return nil
}

// PushToGroup delivers content to every unit in a group. Per-unit
// failures are logged and counted, never aborting the rest of the group.
func (d *Distributor) PushToGroup(ctx context.Context, group, contentID string) (int, error) {
	content, err := d.resolve(ctx, contentID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, client := range d.registry.GetAll() {
		if client.GroupName != group {
			continue
		}
		if err := d.pushResolved(ctx, client.ID, content); err != nil {
			log.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("group", group).
				Msg("Group push failed for client")
			continue
		}
		sent++
	}

	log.Info().
		Str("group", group).
		Str("content_id", content.ID).
		Int("sent", sent).
		Msg("Group content push complete")
	return sent, nil
}

// Broadcast delivers content to every registered unit. The content is
// resolved once; per-unit failures are logged and skipped.
func (d *Distributor) Broadcast(ctx context.Context, contentID string) (int, error) {
	content, err := d.resolve(ctx, contentID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, client := range d.registry.GetAll() {
		if err := d.pushResolved(ctx, client.ID, content); err != nil {
			log.Warn().
				Err(err).
				Str("client_id", client.ID).
				Msg("Broadcast push failed for client")
			continue
		}
		sent++
	}

	log.Info().
		Str("content_id", content.ID).
		Int("sent", sent).
		Msg("Broadcast content push complete")
	return sent, nil
}

func (d *Distributor) pushResolved(ctx context.Context, clientID string, content *Content) error {
	if err := d.registry.AssignContent(ctx, clientID, content.ID); err != nil {
		return err
	}
	if !d.hub.IsConnected(clientID) {
		return nil
	}
	return d.deliver(clientID, content)
}

func (d *Distributor) deliver(clientID string, content *Content) error {
	msg := protocol.DisplayUpdateMessage{
		Header:      protocol.NewHeader(protocol.TypeDisplayUpdate, d.serverID),
		ContentID:   content.ID,
		ContentName: content.Name,
		Payload:     content.Payload,
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return d.hub.SendToClient(clientID, data)
}

// SendCommand delivers an opaque command to one unit
func (d *Distributor) SendCommand(ctx context.Context, clientID, command string, params models.Variables) error {
	msg := protocol.CommandMessage{
		Header:     protocol.NewHeader(protocol.TypeCommand, d.serverID),
		Command:    command,
		Parameters: params,
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := d.hub.SendToClient(clientID, data); err != nil {
		return err
	}

	if d.events != nil {
		d.events.Record(ctx, clientID, models.EventTypeCommandSent, models.EventLevelInfo,
			"command "+command+" sent")
	}
	return nil
}

// SendConfig pushes configuration to one unit
func (d *Distributor) SendConfig(ctx context.Context, clientID string, cfg models.Variables) error {
	msg := protocol.UpdateConfigMessage{
		Header: protocol.NewHeader(protocol.TypeUpdateConfig, d.serverID),
		Config: cfg,
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return d.hub.SendToClient(clientID, data)
}
