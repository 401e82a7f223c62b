package flow

// Event is a user intent or timer signal fed into the reducer.
type Event interface{ flowEvent() }

// Begin starts a fresh intervention flow for a target app. Any in-flight
// flow is discarded wholesale, even for a different app - partial state is
// never merged across targets.
type Begin struct {
	TargetApp            string
	BreathingDurationSec uint
}

func (Begin) flowEvent() {}

// BreathingComplete moves breathing to root_cause once the full breathing
// duration has elapsed. Early or stale deliveries are no-ops.
type BreathingComplete struct{}

func (BreathingComplete) flowEvent() {}

// ToggleCause selects or unselects a root cause.
type ToggleCause struct {
	Cause string
}

func (ToggleCause) flowEvent() {}

// ProceedToAlternatives commits the cause selection. Requires at least one
// selected cause.
type ProceedToAlternatives struct{}

func (ProceedToAlternatives) flowEvent() {}

// GoBackToRootCause returns from alternatives to root_cause, keeping the
// prior cause selection.
type GoBackToRootCause struct{}

func (GoBackToRootCause) flowEvent() {}

// SelectAlternative records a choice without transitioning. Selection and
// commitment are distinct operations.
type SelectAlternative struct {
	ID          string
	DurationSec uint
}

func (SelectAlternative) flowEvent() {}

// ProceedToAction commits the alternative selection.
type ProceedToAction struct{}

func (ProceedToAction) flowEvent() {}

// GoBackFromAction returns from action to alternatives.
type GoBackFromAction struct{}

func (GoBackFromAction) flowEvent() {}

// StartAlternative starts the action countdown from the selected
// alternative's declared duration.
type StartAlternative struct{}

func (StartAlternative) flowEvent() {}

// ActionTimerComplete moves action_timer to reflection once the countdown
// reaches zero.
type ActionTimerComplete struct{}

func (ActionTimerComplete) flowEvent() {}

// FinishAction ends the action early, moving straight to reflection.
type FinishAction struct{}

func (FinishAction) flowEvent() {}

// ProceedToTimer is the "I need to use it" branch from root_cause.
type ProceedToTimer struct{}

func (ProceedToTimer) flowEvent() {}

// SetIntentionTimer completes the timer branch: the flow returns to idle
// but keeps TargetApp so the caller can launch the target app.
type SetIntentionTimer struct{}

func (SetIntentionTimer) flowEvent() {}

// FinishReflection completes the flow.
type FinishReflection struct{}

func (FinishReflection) flowEvent() {}

// Reset forces the flow back to idle from any state.
type Reset struct {
	Cancelled bool
	Reason    string
}

func (Reset) flowEvent() {}
