package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceInfoMerge(t *testing.T) {
	base := DeviceInfo{
		Hostname:    "lobby",
		OS:          "linux",
		CPUCores:    4,
		TotalMemory: 8 << 30,
		CPUUsage:    50,
		MemoryUsage: 60,
	}

	// Empty strings and zero capacities keep the old values; usage
	// fields always replace, zero included.
	base.Merge(DeviceInfo{
		OS:          "linux-6.1",
		CPUUsage:    10,
		MemoryUsage: 0,
	})

	assert.Equal(t, "lobby", base.Hostname)
	assert.Equal(t, "linux-6.1", base.OS)
	assert.Equal(t, 4, base.CPUCores)
	assert.Equal(t, uint64(8<<30), base.TotalMemory)
	assert.Equal(t, float64(10), base.CPUUsage)
	assert.Equal(t, float64(0), base.MemoryUsage)
}

func TestDeviceInfoMergeIdempotent(t *testing.T) {
	in := DeviceInfo{
		Hostname:      "unit",
		Model:         "rpi4",
		CPUCores:      4,
		ScreenWidth:   1920,
		ScreenHeight:  1080,
		CPUUsage:      33.3,
		UptimeSeconds: 1200,
	}

	var once, twice DeviceInfo
	once.Merge(in)
	twice.Merge(in)
	twice.Merge(in)

	assert.Equal(t, once, twice)
}

func TestClientRecordClone(t *testing.T) {
	original := &ClientRecord{
		ID:           "c1",
		HardwareAddr: "AA:BB",
		Name:         "screen",
		Status:       StatusOnline,
	}

	clone := original.Clone()
	clone.Name = "renamed"
	clone.Status = StatusOffline

	assert.Equal(t, "screen", original.Name)
	assert.Equal(t, StatusOnline, original.Status)
}
