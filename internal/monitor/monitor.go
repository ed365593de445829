package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// Monitor watches last-seen timestamps and marks units Offline once
// their silence exceeds the heartbeat timeout
type Monitor struct {
	registry *registry.Registry
	timeout  time.Duration
	interval time.Duration
}

// New creates a liveness monitor
func New(reg *registry.Registry, timeout, interval time.Duration) *Monitor {
	return &Monitor{
		registry: reg,
		timeout:  timeout,
		interval: interval,
	}
}

// Run sweeps the registry on a fixed interval until the context ends
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().
		Dur("timeout", m.timeout).
		Dur("interval", m.interval).
		Msg("Liveness monitor started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, time.Now())
		}
	}
}

// sweep marks every Online record silent past the timeout as Offline.
// A unit last seen exactly at the deadline is still considered alive.
func (m *Monitor) sweep(ctx context.Context, now time.Time) {
	deadline := now.Add(-m.timeout)

	for _, client := range m.registry.GetAll() {
		if client.Status != models.StatusOnline {
			continue
		}
		if !client.LastSeenAt.Before(deadline) {
			continue
		}

		log.Warn().
			Str("client_id", client.ID).
			Str("name", client.Name).
			Time("last_seen", client.LastSeenAt).
			Msg("Client missed heartbeat deadline, marking offline")

		if err := m.registry.UpdateStatus(ctx, client.ID, models.StatusOffline, nil); err != nil &&
			!errors.Is(err, registry.ErrClientNotFound) {
			log.Error().
				Err(err).
				Str("client_id", client.ID).
				Msg("Failed to mark client offline")
		}
	}
}

// HandleHeartbeat refreshes liveness for a lightweight heartbeat
func (m *Monitor) HandleHeartbeat(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.HeartbeatMessage
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}
	return m.touch(ctx, msg.SenderID, &msg.DeviceInfo, connID)
}

// HandleStatusReport refreshes liveness and merges the fuller telemetry
// carried by a status report
func (m *Monitor) HandleStatusReport(ctx context.Context, env *protocol.Envelope, connID string) error {
	var msg protocol.StatusReportMessage
	if err := env.DecodePayload(&msg); err != nil {
		return err
	}
	return m.touch(ctx, msg.SenderID, &msg.DeviceInfo, connID)
}

func (m *Monitor) touch(ctx context.Context, clientID string, info *models.DeviceInfo, connID string) error {
	if clientID == "" {
		log.Debug().
			Str("conn_id", connID).
			Msg("Dropping liveness message without sender identity")
		return nil
	}

	if err := m.registry.Touch(ctx, clientID, info); err != nil {
		if errors.Is(err, registry.ErrClientNotFound) {
			log.Debug().
				Str("client_id", clientID).
				Str("conn_id", connID).
				Msg("Liveness message from unregistered client")
			return nil
		}
		return err
	}
	return nil
}
