package domain

import (
	"context"
	"time"
)

// WindowDuration is the length of a fixed quota window. Windows are aligned
// to wall-clock boundaries derived from local midnight, so a 2h window
// always starts on an even hour and a 24h window starts at midnight.
type WindowDuration time.Duration

const (
	Window15m WindowDuration = WindowDuration(15 * time.Minute)
	Window1h  WindowDuration = WindowDuration(time.Hour)
	Window2h  WindowDuration = WindowDuration(2 * time.Hour)
	Window4h  WindowDuration = WindowDuration(4 * time.Hour)
	Window8h  WindowDuration = WindowDuration(8 * time.Hour)
	Window24h WindowDuration = WindowDuration(24 * time.Hour)
)

// Valid reports whether d is one of the supported window lengths.
func (d WindowDuration) Valid() bool {
	switch d {
	case Window15m, Window1h, Window2h, Window4h, Window8h, Window24h:
		return true
	}
	return false
}

// Duration returns d as a time.Duration.
func (d WindowDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d WindowDuration) String() string {
	return time.Duration(d).String()
}

// QuotaState is the windowed quick-task allowance for a device.
// Invariant: 0 <= Remaining <= Max, and WindowStart sits on a boundary
// dictated by Window.
type QuotaState struct {
	Max         uint
	Remaining   uint
	WindowStart time.Time
	Window      WindowDuration
}

// QuotaRepository persists quota state per device. Get returns
// ErrQuotaNotFound when no state has been written yet.
type QuotaRepository interface {
	Get(ctx context.Context, deviceID string) (QuotaState, error)
	Put(ctx context.Context, deviceID string, state QuotaState) error
}
