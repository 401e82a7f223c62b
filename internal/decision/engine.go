// Package decision implements the arbitration core: a pure, total function
// from a state snapshot to exactly one action.
//
// Evaluation is strictly priority-ordered. The rules live in an ordered
// slice so that precedence is explicit in one place; the first matching
// rule wins and later rules are unreachable once an earlier one fires.
// Evaluate never mutates anything - callers apply the resulting action to
// the registries themselves.
package decision

import (
	"time"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// ResumeDebounce is the window inside which a repeated signal for a
// preserved intervention is treated as an echo of the surface relaunch
// rather than the user switching back.
const ResumeDebounce = 800 * time.Millisecond

// Input is the immutable snapshot a single evaluation runs against.
// All registry reads happen before Evaluate; nothing in here is live.
type Input struct {
	Package string
	Now     time.Time

	Monitored   bool
	Entry       domain.AppEntry
	Quota       domain.QuotaState
	Suppression domain.SuppressionSet

	// SurfaceActive is true when any presentation surface is on screen
	// for the device, independent of which app triggered it.
	SurfaceActive bool

	// ForceEntry bypasses quit and wake suppression.
	ForceEntry bool

	// DisallowQuickTask skips the quick-task branch so evaluation falls
	// through to a full intervention.
	DisallowQuickTask bool
}

type rule struct {
	name string
	eval func(Input) (domain.Decision, bool)
}

func decide(action domain.Action, reason domain.Reason) (domain.Decision, bool) {
	return domain.Decision{Action: action, Reason: reason}, true
}

func skip() (domain.Decision, bool) {
	return domain.Decision{}, false
}

// rules is the full precedence order. Insert new rules at an explicit
// position; appending changes nothing above, prepending changes everything.
var rules = []rule{
	{"unmonitored package", func(in Input) (domain.Decision, bool) {
		if !in.Monitored {
			return decide(domain.NoAction, domain.ReasonNotMonitored)
		}
		return skip()
	}},
	{"active session owns app", func(in Input) (domain.Decision, bool) {
		if in.Entry.HasActiveSession {
			return decide(domain.NoAction, domain.ReasonSessionActive)
		}
		return skip()
	}},
	{"post-choice pending", func(in Input) (domain.Decision, bool) {
		if in.Entry.QuickTaskState == domain.QuickTaskPostChoice {
			return decide(domain.NoAction, domain.ReasonPostChoicePending)
		}
		return skip()
	}},
	{"offer already shown", func(in Input) (domain.Decision, bool) {
		if in.Entry.QuickTaskState == domain.QuickTaskOffering {
			return decide(domain.NoAction, domain.ReasonOfferPending)
		}
		return skip()
	}},
	{"intention window", func(in Input) (domain.Decision, bool) {
		// The single highest-priority user-granted override: it outranks
		// everything below, including an active intervention.
		if in.Suppression.Active(domain.SuppressionIntention, in.Now) {
			return decide(domain.NoAction, domain.ReasonIntentionActive)
		}
		return skip()
	}},
	{"preserved intervention", func(in Input) (domain.Decision, bool) {
		if !in.Entry.InterventionPreserved {
			return skip()
		}
		if !in.Entry.LastInterventionEmittedAt.IsZero() &&
			in.Now.Sub(in.Entry.LastInterventionEmittedAt) < ResumeDebounce {
			return decide(domain.NoAction, domain.ReasonResumeDebounced)
		}
		return decide(domain.StartIntervention, domain.ReasonResumePreserved)
	}},
	{"intervention in progress", func(in Input) (domain.Decision, bool) {
		if in.Entry.QuickTaskState == domain.QuickTaskInterventionActive {
			return decide(domain.StartIntervention, domain.ReasonInterventionInProgress)
		}
		return skip()
	}},
	{"quick task running", func(in Input) (domain.Decision, bool) {
		if in.Entry.QuickTaskState == domain.QuickTaskActive {
			return decide(domain.NoAction, domain.ReasonQuickTaskRunning)
		}
		return skip()
	}},
	{"quit suppression", func(in Input) (domain.Decision, bool) {
		if !in.ForceEntry && in.Suppression.Active(domain.SuppressionQuit, in.Now) {
			return decide(domain.NoAction, domain.ReasonQuitSuppressed)
		}
		return skip()
	}},
	{"wake suppression", func(in Input) (domain.Decision, bool) {
		if !in.ForceEntry && in.Suppression.Active(domain.SuppressionWake, in.Now) {
			return decide(domain.NoAction, domain.ReasonWakeSuppressed)
		}
		return skip()
	}},
	{"surface already on screen", func(in Input) (domain.Decision, bool) {
		if in.SurfaceActive {
			return decide(domain.NoAction, domain.ReasonSurfaceActive)
		}
		return skip()
	}},
	{"quota available", func(in Input) (domain.Decision, bool) {
		if !in.DisallowQuickTask && in.Quota.Remaining > 0 {
			return decide(domain.StartQuickTask, domain.ReasonQuotaAvailable)
		}
		return skip()
	}},
	{"fallback intervention", func(in Input) (domain.Decision, bool) {
		return decide(domain.StartIntervention, domain.ReasonQuotaExhausted)
	}},
}

// Evaluate maps a snapshot to exactly one (Action, Reason) pair. It is
// total and deterministic: identical inputs always yield identical output.
func Evaluate(in Input) domain.Decision {
	for _, r := range rules {
		if d, ok := r.eval(in); ok {
			return d
		}
	}
	// The fallback rule always matches; this is unreachable.
	return domain.Decision{Action: domain.NoAction, Reason: domain.ReasonNotMonitored}
}
