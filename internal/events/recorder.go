package events

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

// Recorder writes fleet lifecycle events to the event log. Persist
// failures are logged and swallowed so audit logging never breaks the
// operation that produced the event.
type Recorder struct {
	store storage.Store
}

// NewRecorder creates an event recorder
func NewRecorder(store storage.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one event log entry
func (r *Recorder) Record(ctx context.Context, clientID string, eventType models.EventType, level models.EventLevel, description string) {
	event := &models.EventLog{
		ClientID:    clientID,
		Type:        eventType,
		Level:       level,
		Description: description,
	}

	if err := r.store.CreateEventLog(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Str("type", string(eventType)).
			Msg("Failed to record event log")
	}
}

// RecordDetails appends one event log entry carrying structured details
func (r *Recorder) RecordDetails(ctx context.Context, clientID string, eventType models.EventType, level models.EventLevel, description string, details models.Variables) {
	event := &models.EventLog{
		ClientID:    clientID,
		Type:        eventType,
		Level:       level,
		Description: description,
		Details:     details,
	}

	if err := r.store.CreateEventLog(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Str("type", string(eventType)).
			Msg("Failed to record event log")
	}
}
