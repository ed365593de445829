package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Token validation errors. These are surfaced to the registering unit as
// rejection reasons.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenExhausted        = errors.New("token exhausted")
	ErrTokenHardwareMismatch = errors.New("token not valid for this hardware address")
)

// RegistrationToken is a one-time or bounded-use credential gating
// registration of new display units
type RegistrationToken struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Token string    `json:"token" db:"token"`

	// Optional restriction to a single hardware address
	HardwareAddr string `json:"hardwareAddr,omitempty" db:"hardware_addr"`

	// Auto-assigned on successful registration
	GroupName string `json:"group,omitempty" db:"group_name"`
	Location  string `json:"location,omitempty" db:"location"`

	// MaxUses = 0 means unlimited
	MaxUses   int `json:"maxUses" db:"max_uses"`
	UsesCount int `json:"usesCount" db:"uses_count"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// Validate checks whether the token can be consumed for the given
// hardware address at the given instant
func (t *RegistrationToken) Validate(hardwareAddr string, now time.Time) error {
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return ErrTokenExpired
	}
	if t.MaxUses > 0 && t.UsesCount >= t.MaxUses {
		return ErrTokenExhausted
	}
	if t.HardwareAddr != "" && !strings.EqualFold(t.HardwareAddr, hardwareAddr) {
		return ErrTokenHardwareMismatch
	}
	return nil
}
