package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of message carried by an envelope
type Type string

// Closed set of message types exchanged with display units. Unknown types
// still decode at the envelope level; the dispatcher drops them.
const (
	TypeRegister             Type = "REGISTER"
	TypeRegistrationResponse Type = "REGISTRATION_RESPONSE"
	TypeHeartbeat            Type = "HEARTBEAT"
	TypeStatusReport         Type = "STATUS_REPORT"
	TypeDisplayUpdate        Type = "DISPLAY_UPDATE"
	TypeCommand              Type = "COMMAND"
	TypeScreenshot           Type = "SCREENSHOT"
	TypeLog                  Type = "LOG"
	TypeUpdateConfig         Type = "UPDATE_CONFIG"
	TypeUpdateConfigResponse Type = "UPDATE_CONFIG_RESPONSE"
)

// ErrMalformedMessage indicates an undecodable envelope or a missing
// required envelope field
var ErrMalformedMessage = errors.New("malformed message")

// Header is the wire envelope common to every message. Type-specific
// fields sit beside these at the top level of the JSON document.
type Header struct {
	ID        string    `json:"Id"`
	Type      Type      `json:"Type"`
	Timestamp time.Time `json:"Timestamp"`
	SenderID  string    `json:"SenderId"`
}

// NewHeader builds a header for an outbound message
func NewHeader(t Type, senderID string) Header {
	return Header{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		SenderID:  senderID,
	}
}

// Envelope is a decoded wire message. The raw bytes are retained so the
// typed payload can be decoded once the Type is known.
type Envelope struct {
	Header
	raw []byte
}

// Decode parses the envelope header from a wire frame. Unknown top-level
// fields are ignored for forward compatibility.
func Decode(data []byte) (*Envelope, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if h.Type == "" {
		return nil, fmt.Errorf("%w: missing Type", ErrMalformedMessage)
	}
	return &Envelope{Header: h, raw: data}, nil
}

// DecodePayload unmarshals the full message into the given payload struct
func (e *Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// Raw returns the original wire frame
func (e *Envelope) Raw() []byte {
	return e.raw
}

// Encode serializes an outbound message. The message struct must embed
// Header so the envelope fields end up at the top level.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}
