package protocol

import (
	"encoding/json"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// RegisterMessage is sent by a unit to register or re-register itself
type RegisterMessage struct {
	Header
	HardwareAddr string            `json:"HardwareAddr"`
	Token        string            `json:"Token,omitempty"`
	ClientID     string            `json:"ClientId,omitempty"`
	Name         string            `json:"Name,omitempty"`
	DeviceInfo   models.DeviceInfo `json:"DeviceInfo"`
}

// RegistrationResponse answers a RegisterMessage
type RegistrationResponse struct {
	Header
	Success  bool   `json:"Success"`
	Reason   string `json:"Reason,omitempty"`
	ClientID string `json:"ClientId,omitempty"`
	Group    string `json:"Group,omitempty"`
	Location string `json:"Location,omitempty"`
}

// HeartbeatMessage carries a lightweight telemetry snapshot
type HeartbeatMessage struct {
	Header
	DeviceInfo models.DeviceInfo `json:"DeviceInfo"`
}

// StatusReportMessage is a fuller status report from a unit
type StatusReportMessage struct {
	Header
	CurrentContentID string            `json:"CurrentContentId,omitempty"`
	State            string            `json:"State,omitempty"`
	DeviceInfo       models.DeviceInfo `json:"DeviceInfo"`
}

// DisplayUpdateMessage pushes resolved content to a unit
type DisplayUpdateMessage struct {
	Header
	ContentID   string          `json:"ContentId"`
	ContentName string          `json:"ContentName,omitempty"`
	Payload     json.RawMessage `json:"Payload,omitempty"`
}

// CommandMessage carries an opaque command to a unit
type CommandMessage struct {
	Header
	Command    string           `json:"Command"`
	Parameters models.Variables `json:"Parameters,omitempty"`
}

// ScreenshotMessage carries a screen capture from a unit
type ScreenshotMessage struct {
	Header
	Format string `json:"Format,omitempty"`
	Data   []byte `json:"Data"`
}

// LogMessage carries a log line from a unit
type LogMessage struct {
	Header
	Level   string `json:"Level,omitempty"`
	Message string `json:"Message"`
}

// UpdateConfigMessage pushes configuration to a unit
type UpdateConfigMessage struct {
	Header
	Config models.Variables `json:"Config"`
}

// UpdateConfigResponse acknowledges an UpdateConfigMessage
type UpdateConfigResponse struct {
	Header
	Success bool   `json:"Success"`
	Reason  string `json:"Reason,omitempty"`
}
