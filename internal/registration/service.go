package registration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registry"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

// TokenStore is the token surface consumed by the registration service
type TokenStore interface {
	GetRegistrationToken(ctx context.Context, value string) (*models.RegistrationToken, error)
	ConsumeRegistrationToken(ctx context.Context, value string) error
}

// SessionHub is the transport surface consumed by the registration service
type SessionHub interface {
	Bind(connID, clientID string) error
	SendTo(connID string, data []byte) error
	RemoteAddr(connID string) string
}

// ContentPusher resends assigned content after a unit reconnects
type ContentPusher interface {
	Push(ctx context.Context, clientID, contentID string) error
}

// EventRecorder persists audit events emitted during registration
type EventRecorder interface {
	Record(ctx context.Context, clientID string, eventType models.EventType, level models.EventLevel, description string)
}

// Service implements the registration handshake. It admits new units
// against bounded-use tokens, re-admits known units by hardware address,
// and reconciles identity changes across reinstalls.
type Service struct {
	registry *registry.Registry
	tokens   TokenStore
	hub      SessionHub
	pusher   ContentPusher
	events   EventRecorder
	serverID string

	locksMu sync.Mutex
	hwLocks map[string]*sync.Mutex
}

// NewService creates a registration service
func NewService(reg *registry.Registry, tokens TokenStore, hub SessionHub, pusher ContentPusher, events EventRecorder, serverID string) *Service {
	return &Service{
		registry: reg,
		tokens:   tokens,
		hub:      hub,
		pusher:   pusher,
		events:   events,
		serverID: serverID,
		hwLocks:  make(map[string]*sync.Mutex),
	}
}

// lockHardware serializes registration per hardware address. The
// registry's identity locks cannot cover two attempts that both arrive
// without a client id and would each mint a fresh one.
func (s *Service) lockHardware(addr string) func() {
	key := strings.ToLower(addr)
	s.locksMu.Lock()
	l, ok := s.hwLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.hwLocks[key] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// HandleRegister processes one REGISTER message. Validation failures are
// answered with a rejection carrying the reason; infrastructure failures
// are answered with a generic rejection and surfaced to the dispatcher.
func (s *Service) HandleRegister(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.RegisterMessage
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}

	msg.HardwareAddr = strings.TrimSpace(msg.HardwareAddr)
	if msg.HardwareAddr == "" {
		s.reject(connID, "hardware address is required")
		return nil
	}

	unlock := s.lockHardware(msg.HardwareAddr)
	defer unlock()

	known, hasRecord := s.registry.GetByHardwareAddr(msg.HardwareAddr)

	var token *models.RegistrationToken
	if msg.Token != "" {
		t, err := s.tokens.GetRegistrationToken(ctx, msg.Token)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.reject(connID, "unknown registration token")
				return nil
			}
			s.reject(connID, "internal error")
			return err
		}
		if err := t.Validate(msg.HardwareAddr, time.Now()); err != nil {
			s.reject(connID, err.Error())
			return nil
		}
		token = t
	} else if !hasRecord {
		// Tokenless registration is a re-admission path only
		s.reject(connID, "registration token required for unknown hardware")
		return nil
	}

	record := s.buildRecord(&msg, known, token)
	if addr := s.hub.RemoteAddr(connID); addr != "" {
		record.NetworkAddr = addr
	}

	// Consume after validation so a rejected attempt never burns a use.
	// The consume re-checks bounds atomically against concurrent users.
	if token != nil {
		if err := s.tokens.ConsumeRegistrationToken(ctx, token.Token); err != nil {
			if errors.Is(err, models.ErrTokenExhausted) {
				s.reject(connID, models.ErrTokenExhausted.Error())
				return nil
			}
			s.reject(connID, "internal error")
			return err
		}
	}

	// A known hardware address arriving under a new client identity means
	// the unit was reinstalled. The old record is retired in favor of the
	// new identity.
	if hasRecord && known.ID != record.ID {
		if err := s.retireOldIdentity(ctx, known.ID); err != nil {
			s.reject(connID, "internal error")
			return err
		}
	}

	s.registry.Upsert(ctx, record)

	if err := s.hub.Bind(connID, record.ID); err != nil {
		log.Warn().
			Err(err).
			Str("conn_id", connID).
			Str("client_id", record.ID).
			Msg("Session vanished before registration completed")
		return nil
	}

	s.respond(connID, record)

	if s.events != nil {
		s.events.Record(ctx, record.ID, models.EventTypeRegistered, models.EventLevelInfo,
			"client registered from "+msg.HardwareAddr)
	}

	log.Info().
		Str("client_id", record.ID).
		Str("hardware_addr", record.HardwareAddr).
		Str("group", record.GroupName).
		Bool("re_registration", hasRecord).
		Msg("Client registered")

	// Resume whatever the unit was showing before it dropped
	if record.AssignedContentID != "" && s.pusher != nil {
		if err := s.pusher.Push(ctx, record.ID, record.AssignedContentID); err != nil {
			log.Warn().
				Err(err).
				Str("client_id", record.ID).
				Str("content_id", record.AssignedContentID).
				Msg("Failed to resume assigned content")
		}
	}

	return nil
}

// buildRecord merges the inbound registration onto whatever is already
// known about the hardware. Prior group, location, and content assignment
// survive a reinstall.
func (s *Service) buildRecord(msg *protocol.RegisterMessage, known *models.ClientRecord, token *models.RegistrationToken) *models.ClientRecord {
	now := time.Now()

	record := &models.ClientRecord{
		ID:           msg.ClientID,
		HardwareAddr: msg.HardwareAddr,
		Name:         msg.Name,
		Status:       models.StatusOnline,
		LastSeenAt:   now,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if known != nil {
		if record.ID == "" {
			record.ID = known.ID
		}
		if record.Name == "" {
			record.Name = known.Name
		}
		record.GroupName = known.GroupName
		record.Location = known.Location
		record.NetworkAddr = known.NetworkAddr
		record.AssignedContentID = known.AssignedContentID
		record.RegisteredAt = known.RegisteredAt
		record.DeviceInfo = known.DeviceInfo
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Name == "" {
		record.Name = msg.HardwareAddr
	}

	if token != nil {
		if token.GroupName != "" {
			record.GroupName = token.GroupName
		}
		if token.Location != "" {
			record.Location = token.Location
		}
	}

	record.DeviceInfo.Merge(msg.DeviceInfo)
	return record
}

// retireOldIdentity drops the superseded record for a reinstalled unit
func (s *Service) retireOldIdentity(ctx context.Context, oldID string) error {
	log.Info().
		Str("old_client_id", oldID).
		Msg("Retiring superseded client identity")

	if err := s.registry.Remove(ctx, oldID); err != nil && !errors.Is(err, registry.ErrClientNotFound) {
		return err
	}
	return nil
}

func (s *Service) respond(connID string, record *models.ClientRecord) {
	resp := protocol.RegistrationResponse{
		Header:   protocol.NewHeader(protocol.TypeRegistrationResponse, s.serverID),
		Success:  true,
		ClientID: record.ID,
		Group:    record.GroupName,
		Location: record.Location,
	}
	s.send(connID, resp)
}

func (s *Service) reject(connID, reason string) {
	log.Info().
		Str("conn_id", connID).
		Str("reason", reason).
		Msg("Registration rejected")

	resp := protocol.RegistrationResponse{
		Header:  protocol.NewHeader(protocol.TypeRegistrationResponse, s.serverID),
		Success: false,
		Reason:  reason,
	}
	s.send(connID, resp)
}

func (s *Service) send(connID string, v interface{}) {
	data, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode registration response")
		return
	}
	if err := s.hub.SendTo(connID, data); err != nil {
		log.Debug().
			Err(err).
			Str("conn_id", connID).
			Msg("Failed to deliver registration response")
	}
}
