package domain

import (
	"context"
	"time"
)

// SuppressionKind names one of the independent "do not trigger before T"
// timers kept per monitored package.
type SuppressionKind string

const (
	// SuppressionQuit is set when the user explicitly quits a flow, so the
	// same app does not immediately retrigger.
	SuppressionQuit SuppressionKind = "quit"
	// SuppressionWake is set after a presentation surface closes, absorbing
	// the foreground signal generated by the surface teardown itself.
	SuppressionWake SuppressionKind = "wake"
	// SuppressionIntention is the user-granted "I need to use it" window.
	// It outranks every other trigger rule.
	SuppressionIntention SuppressionKind = "intention"
)

// SuppressionSet holds the active-until timestamps for all kinds of one
// (device, package) pair. A zero time means the kind is not active.
type SuppressionSet struct {
	QuitUntil      time.Time
	WakeUntil      time.Time
	IntentionUntil time.Time
}

// Remaining returns how long the given kind stays active at now, clamped
// at zero so a backwards clock jump never yields a negative window.
func (s SuppressionSet) Remaining(kind SuppressionKind, now time.Time) time.Duration {
	var until time.Time
	switch kind {
	case SuppressionQuit:
		until = s.QuitUntil
	case SuppressionWake:
		until = s.WakeUntil
	case SuppressionIntention:
		until = s.IntentionUntil
	}
	if until.IsZero() || !until.After(now) {
		return 0
	}
	return until.Sub(now)
}

// Active reports whether the given kind is still in effect at now.
func (s SuppressionSet) Active(kind SuppressionKind, now time.Time) bool {
	return s.Remaining(kind, now) > 0
}

// SuppressionRepository persists per-(device, package) suppression
// timestamps. Get returns the zero set when nothing is stored.
type SuppressionRepository interface {
	Get(ctx context.Context, deviceID, pkg string) (SuppressionSet, error)
	Set(ctx context.Context, deviceID, pkg string, kind SuppressionKind, until time.Time) error
	Clear(ctx context.Context, deviceID, pkg string, kind SuppressionKind) error
}
