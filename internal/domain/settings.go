package domain

import (
	"context"
	"time"
)

// Default settings applied when a device has no stored configuration.
const (
	DefaultMaxQuotaPerWindow    = 3
	DefaultWindow               = Window1h
	DefaultBreathingDurationSec = 30
	DefaultQuickTaskDurationSec = 300
	DefaultIntentionDuration    = 10 * time.Minute
	DefaultWakeSuppression      = 10 * time.Second
)

// DeviceSettings is the externally supplied configuration surface for one
// device. It is owned by the admin API, not by the arbitration core.
type DeviceSettings struct {
	DeviceID          string
	MonitoredPackages []string

	MaxQuotaPerWindow uint
	Window            WindowDuration

	BreathingDurationSec uint
	QuickTaskDurationSec uint
	IntentionDefault     time.Duration
	Timezone             string

	UpdatedAt time.Time
}

// Monitors reports whether pkg is in the monitored set.
func (s DeviceSettings) Monitors(pkg string) bool {
	for _, p := range s.MonitoredPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

// Location resolves the device timezone, falling back to UTC on a bad or
// empty name so arbitration never fails on a settings problem.
func (s DeviceSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultSettings returns the fail-open settings for a device with no
// stored configuration: nothing monitored, conservative defaults.
func DefaultSettings(deviceID string) DeviceSettings {
	return DeviceSettings{
		DeviceID:             deviceID,
		MaxQuotaPerWindow:    DefaultMaxQuotaPerWindow,
		Window:               DefaultWindow,
		BreathingDurationSec: DefaultBreathingDurationSec,
		QuickTaskDurationSec: DefaultQuickTaskDurationSec,
		IntentionDefault:     DefaultIntentionDuration,
	}
}

// SettingsRepository persists device settings. Get returns
// ErrSettingsNotFound when the device has never been configured.
type SettingsRepository interface {
	Get(ctx context.Context, deviceID string) (DeviceSettings, error)
	Upsert(ctx context.Context, settings DeviceSettings) error
}
