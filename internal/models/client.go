package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ClientStatus represents the liveness status of a display unit
type ClientStatus string

const (
	StatusOnline  ClientStatus = "ONLINE"
	StatusOffline ClientStatus = "OFFLINE"
)

// ClientRecord represents a registered display unit
type ClientRecord struct {
	// Identity. ID is the stable identity, HardwareAddr the immutable
	// natural key a unit is recognized by across re-registrations.
	ID           string `json:"id" db:"id"`
	HardwareAddr string `json:"hardwareAddr" db:"hardware_addr"`

	// Metadata
	Name        string `json:"name" db:"name"`
	NetworkAddr string `json:"networkAddr" db:"network_addr"`
	GroupName   string `json:"group" db:"group_name"`
	Location    string `json:"location" db:"location"`

	// Content
	AssignedContentID string `json:"assignedContentId,omitempty" db:"assigned_content_id"`

	// Status
	Status     ClientStatus `json:"status" db:"status"`
	LastSeenAt time.Time    `json:"lastSeenAt" db:"last_seen_at"`

	// Telemetry
	DeviceInfo DeviceInfo `json:"deviceInfo" db:"device_info"`

	RegisteredAt time.Time `json:"registeredAt" db:"registered_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy of the record
func (c *ClientRecord) Clone() *ClientRecord {
	cp := *c
	return &cp
}

// DeviceInfo is a point-in-time telemetry snapshot of a unit
type DeviceInfo struct {
	Hostname        string `json:"hostname,omitempty"`
	Model           string `json:"model,omitempty"`
	OS              string `json:"os,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`

	// Capacities
	CPUCores     int    `json:"cpuCores,omitempty"`
	TotalMemory  uint64 `json:"totalMemory,omitempty"`
	TotalDisk    uint64 `json:"totalDisk,omitempty"`
	ScreenWidth  int    `json:"screenWidth,omitempty"`
	ScreenHeight int    `json:"screenHeight,omitempty"`

	// Usage. Zero is a legitimate value for these.
	CPUUsage      float64 `json:"cpuUsage"`
	MemoryUsage   float64 `json:"memoryUsage"`
	DiskUsage     float64 `json:"diskUsage"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}

// Merge applies an incoming snapshot onto d. String fields are replaced
// only when the incoming value is non-empty, capacity fields only when
// positive, usage fields always.
func (d *DeviceInfo) Merge(in DeviceInfo) {
	if in.Hostname != "" {
		d.Hostname = in.Hostname
	}
	if in.Model != "" {
		d.Model = in.Model
	}
	if in.OS != "" {
		d.OS = in.OS
	}
	if in.SoftwareVersion != "" {
		d.SoftwareVersion = in.SoftwareVersion
	}

	if in.CPUCores > 0 {
		d.CPUCores = in.CPUCores
	}
	if in.TotalMemory > 0 {
		d.TotalMemory = in.TotalMemory
	}
	if in.TotalDisk > 0 {
		d.TotalDisk = in.TotalDisk
	}
	if in.ScreenWidth > 0 {
		d.ScreenWidth = in.ScreenWidth
	}
	if in.ScreenHeight > 0 {
		d.ScreenHeight = in.ScreenHeight
	}

	d.CPUUsage = in.CPUUsage
	d.MemoryUsage = in.MemoryUsage
	d.DiskUsage = in.DiskUsage
	d.UptimeSeconds = in.UptimeSeconds
}

// Value implements driver.Valuer interface
func (d DeviceInfo) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface
func (d *DeviceInfo) Scan(value interface{}) error {
	if value == nil {
		*d = DeviceInfo{}
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, d)
	case string:
		return json.Unmarshal([]byte(data), d)
	default:
		return fmt.Errorf("cannot scan %T into DeviceInfo", value)
	}
}
