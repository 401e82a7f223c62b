// Package flow implements the multi-screen intervention state machine.
//
// Apply is a pure reducer: it never performs I/O and never raises on a
// bad transition - an event arriving in the wrong state returns the
// context unchanged plus a note, so stale timer ticks are harmless.
// Countdowns are recomputed from start timestamps on every read; they are
// never decremented per tick, so a suspended host cannot freeze them at a
// nonzero value.
package flow

import (
	"fmt"
	"time"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Transition reports what Apply did.
type Transition struct {
	Applied bool
	From    domain.FlowState
	To      domain.FlowState
	Note    string
}

// Idle returns the empty flow context.
func Idle() domain.FlowContext {
	return domain.FlowContext{State: domain.FlowIdle}
}

// Resumed reconstructs a flow parked in action_timer from its preserved
// snapshot. The remaining countdown derives from the snapshot's start
// timestamp, so time that passed while the process was dead is honored.
func Resumed(snapshot domain.PreservedFlow) domain.FlowContext {
	return domain.FlowContext{
		State:              domain.FlowActionTimer,
		TargetApp:          snapshot.TargetApp,
		BreathingCompleted: true,
		ActionDurationSec:  snapshot.DurationSec,
		ActionStartedAt:    snapshot.StartedAt,
	}
}

// Apply reduces one event against the current context.
func Apply(f domain.FlowContext, ev Event, now time.Time) (domain.FlowContext, Transition) {
	from := f.State

	applied := func(f domain.FlowContext) (domain.FlowContext, Transition) {
		return f, Transition{Applied: true, From: from, To: f.State}
	}
	ignored := func(note string) (domain.FlowContext, Transition) {
		return f, Transition{Applied: false, From: from, To: from, Note: note}
	}
	wrongState := func() (domain.FlowContext, Transition) {
		return ignored(fmt.Sprintf("event %T not valid in state %s", ev, from))
	}

	switch ev := ev.(type) {
	case Begin:
		if ev.TargetApp == "" {
			return ignored("begin without target app")
		}
		// Wholesale discard of any prior flow, including a different
		// target's partial state.
		return applied(domain.FlowContext{
			State:                domain.FlowBreathing,
			TargetApp:            ev.TargetApp,
			BreathingStartedAt:   now,
			BreathingDurationSec: ev.BreathingDurationSec,
		})

	case BreathingComplete:
		if f.State != domain.FlowBreathing {
			return wrongState()
		}
		if f.BreathingCompleted {
			return ignored("breathing already completed")
		}
		if f.BreathingRemaining(now) > 0 {
			return ignored("breathing not finished")
		}
		f.BreathingCompleted = true
		f.State = domain.FlowRootCause
		return applied(f)

	case ToggleCause:
		if f.State != domain.FlowRootCause {
			return wrongState()
		}
		if f.HasCause(ev.Cause) {
			causes := make([]string, 0, len(f.SelectedCauses))
			for _, c := range f.SelectedCauses {
				if c != ev.Cause {
					causes = append(causes, c)
				}
			}
			f.SelectedCauses = causes
		} else {
			f.SelectedCauses = append(f.SelectedCauses, ev.Cause)
		}
		return applied(f)

	case ProceedToAlternatives:
		if f.State != domain.FlowRootCause {
			return wrongState()
		}
		if len(f.SelectedCauses) == 0 {
			return ignored("no cause selected")
		}
		f.State = domain.FlowAlternatives
		return applied(f)

	case GoBackToRootCause:
		if f.State != domain.FlowAlternatives {
			return wrongState()
		}
		// Prior cause selections are kept.
		f.State = domain.FlowRootCause
		return applied(f)

	case SelectAlternative:
		if f.State != domain.FlowAlternatives {
			return wrongState()
		}
		f.SelectedAlternative = ev.ID
		f.ActionDurationSec = ev.DurationSec
		return applied(f)

	case ProceedToAction:
		if f.State != domain.FlowAlternatives {
			return wrongState()
		}
		if f.SelectedAlternative == "" {
			return ignored("no alternative selected")
		}
		f.State = domain.FlowAction
		return applied(f)

	case GoBackFromAction:
		if f.State != domain.FlowAction {
			return wrongState()
		}
		f.State = domain.FlowAlternatives
		return applied(f)

	case StartAlternative:
		if f.State != domain.FlowAction {
			return wrongState()
		}
		f.State = domain.FlowActionTimer
		f.ActionStartedAt = now
		return applied(f)

	case ActionTimerComplete:
		if f.State != domain.FlowActionTimer {
			return wrongState()
		}
		if f.ActionRemaining(now) > 0 {
			return ignored("action timer still running")
		}
		f.State = domain.FlowReflection
		return applied(f)

	case FinishAction:
		if f.State != domain.FlowActionTimer {
			return wrongState()
		}
		f.State = domain.FlowReflection
		return applied(f)

	case ProceedToTimer:
		if f.State != domain.FlowRootCause {
			return wrongState()
		}
		f.State = domain.FlowTimer
		return applied(f)

	case SetIntentionTimer:
		if f.State != domain.FlowTimer {
			return wrongState()
		}
		// Back to idle, but TargetApp survives so the caller can launch
		// the app the user asked for.
		target := f.TargetApp
		f = Idle()
		f.TargetApp = target
		f.IntentionTimerSet = true
		return applied(f)

	case FinishReflection:
		if f.State != domain.FlowReflection {
			return wrongState()
		}
		f = Idle()
		f.WasCompleted = true
		return applied(f)

	case Reset:
		f = Idle()
		f.WasCancelled = ev.Cancelled
		f.ResetReason = ev.Reason
		return applied(f)
	}

	return ignored(fmt.Sprintf("unknown event %T", ev))
}
