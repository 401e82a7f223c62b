package domain

// Action is the arbitration outcome for one foreground signal.
type Action string

const (
	NoAction          Action = "no_action"
	StartQuickTask    Action = "start_quick_task"
	StartIntervention Action = "start_intervention"
)

// Reason is the machine-readable tag explaining why a decision fired.
// Every branch of the decision engine has exactly one tag, so tests and
// observability can assert why, not just what.
type Reason string

const (
	ReasonNotMonitored           Reason = "not_monitored"
	ReasonSessionActive          Reason = "session_active"
	ReasonPostChoicePending      Reason = "post_choice_pending"
	ReasonOfferPending           Reason = "offer_pending"
	ReasonIntentionActive        Reason = "intention_active"
	ReasonResumeDebounced        Reason = "resume_debounced"
	ReasonResumePreserved        Reason = "resume_preserved"
	ReasonInterventionInProgress Reason = "intervention_in_progress"
	ReasonQuickTaskRunning       Reason = "quick_task_running"
	ReasonQuitSuppressed         Reason = "quit_suppressed"
	ReasonWakeSuppressed         Reason = "wake_suppressed"
	ReasonSurfaceActive          Reason = "surface_active"
	ReasonQuotaAvailable         Reason = "quota_available"
	ReasonQuotaExhausted         Reason = "quota_exhausted"
)

// Decision pairs the chosen action with its reason tag.
type Decision struct {
	Action Action `json:"action"`
	Reason Reason `json:"reason"`
}
