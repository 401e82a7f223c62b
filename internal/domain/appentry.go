package domain

import (
	"context"
	"time"
)

// QuickTaskState is the per-package flow status.
type QuickTaskState string

const (
	// QuickTaskNone means no flow is in progress for the package.
	QuickTaskNone QuickTaskState = "NONE"
	// QuickTaskOffering means the quick-task prompt is on screen.
	QuickTaskOffering QuickTaskState = "OFFERING"
	// QuickTaskActive means a quick-task countdown is running.
	QuickTaskActive QuickTaskState = "ACTIVE"
	// QuickTaskPostChoice means the quick task expired and the user is
	// deciding between another quick task and an intervention.
	QuickTaskPostChoice QuickTaskState = "POST_CHOICE"
	// QuickTaskInterventionActive means the full intervention flow owns
	// the package.
	QuickTaskInterventionActive QuickTaskState = "INTERVENTION_ACTIVE"
)

// AppEntry is the mutable per-(device, package) status record. Entries are
// materialized lazily on the first signal for a package; the zero value is
// a valid "nothing in progress" entry.
type AppEntry struct {
	QuickTaskState            QuickTaskState
	InterventionPreserved     bool
	LastInterventionEmittedAt time.Time
	HasActiveSession          bool

	// QuickTaskStartedAt anchors the quick-task countdown. The remaining
	// time is recomputed from it on read, never tick-decremented.
	QuickTaskStartedAt time.Time
}

// Normalized returns the entry with a usable QuickTaskState: a freshly
// materialized zero entry reads as NONE.
func (e AppEntry) Normalized() AppEntry {
	if e.QuickTaskState == "" {
		e.QuickTaskState = QuickTaskNone
	}
	return e
}

// QuickTaskRemaining returns the remaining quick-task time at now, clamped
// at zero. Returns zero when no quick task is running.
func (e AppEntry) QuickTaskRemaining(now time.Time, duration time.Duration) time.Duration {
	if e.QuickTaskState != QuickTaskActive || e.QuickTaskStartedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(e.QuickTaskStartedAt)
	if elapsed >= duration {
		return 0
	}
	return duration - elapsed
}

// AppEntryRepository persists app entries per (device, package). Get
// returns the zero entry when nothing is stored.
type AppEntryRepository interface {
	Get(ctx context.Context, deviceID, pkg string) (AppEntry, error)
	Put(ctx context.Context, deviceID, pkg string, entry AppEntry) error
	Delete(ctx context.Context, deviceID, pkg string) error
}
