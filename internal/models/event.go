package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents a fleet lifecycle event entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	ClientID string `json:"clientId,omitempty" db:"client_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Client events
	EventTypeRegistered EventType = "REGISTERED"
	EventTypeOnline     EventType = "ONLINE"
	EventTypeOffline    EventType = "OFFLINE"
	EventTypeRemoved    EventType = "REMOVED"

	// Distribution events
	EventTypeContentPushed EventType = "CONTENT_PUSHED"
	EventTypeCommandSent   EventType = "COMMAND_SENT"

	// Unit-reported events
	EventTypeScreenshot EventType = "SCREENSHOT"
	EventTypeClientLog  EventType = "CLIENT_LOG"

	EventTypeError EventType = "ERROR"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)
