package domain

import (
	"context"
	"time"
)

// FlowState is the current screen of the intervention flow.
type FlowState string

const (
	FlowIdle         FlowState = "idle"
	FlowBreathing    FlowState = "breathing"
	FlowRootCause    FlowState = "root_cause"
	FlowAlternatives FlowState = "alternatives"
	FlowAction       FlowState = "action"
	FlowActionTimer  FlowState = "action_timer"
	FlowTimer        FlowState = "timer"
	FlowReflection   FlowState = "reflection"
)

// FlowContext is the single in-flight intervention flow of a device.
// TargetApp is non-empty for every state except idle. Countdowns are
// derived from the start timestamps on read; nothing in here is
// tick-decremented.
type FlowContext struct {
	State     FlowState
	TargetApp string

	BreathingStartedAt   time.Time
	BreathingDurationSec uint
	BreathingCompleted   bool

	SelectedCauses      []string
	SelectedAlternative string

	ActionDurationSec uint
	ActionStartedAt   time.Time

	WasCompleted      bool
	WasCancelled      bool
	IntentionTimerSet bool
	ResetReason       string
}

// BreathingRemaining returns the breathing countdown in whole seconds at
// now, clamped at zero.
func (f FlowContext) BreathingRemaining(now time.Time) uint {
	return remainingSec(f.BreathingStartedAt, f.BreathingDurationSec, now)
}

// ActionRemaining returns the action-timer countdown in whole seconds at
// now, clamped at zero.
func (f FlowContext) ActionRemaining(now time.Time) uint {
	return remainingSec(f.ActionStartedAt, f.ActionDurationSec, now)
}

// HasCause reports whether the given root cause is currently selected.
func (f FlowContext) HasCause(cause string) bool {
	for _, c := range f.SelectedCauses {
		if c == cause {
			return true
		}
	}
	return false
}

func remainingSec(startedAt time.Time, durationSec uint, now time.Time) uint {
	if startedAt.IsZero() {
		return durationSec
	}
	elapsed := now.Sub(startedAt)
	if elapsed <= 0 {
		return durationSec
	}
	elapsedSec := uint(elapsed / time.Second)
	if elapsedSec >= durationSec {
		return 0
	}
	return durationSec - elapsedSec
}

// PreservedFlow is the durable snapshot of a flow parked in action_timer.
// It is the sole recovery artifact across process death: written when the
// flow enters action_timer, deleted when it leaves.
type PreservedFlow struct {
	TargetApp   string    `json:"target_app"`
	DurationSec uint      `json:"duration_sec"`
	StartedAt   time.Time `json:"started_at"`
}

// FlowSnapshotRepository persists the preserved-flow snapshot per device.
// Get returns ErrNoPreservedFlow when nothing is stored.
type FlowSnapshotRepository interface {
	Get(ctx context.Context, deviceID string) (PreservedFlow, error)
	Put(ctx context.Context, deviceID string, snapshot PreservedFlow) error
	Delete(ctx context.Context, deviceID string) error
}
