package gate

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/flow"
	"github.com/flyimmer/breakloop-native-sub009/internal/metrics"
)

// DefaultQuitSuppression is how long a package stays quiet after the user
// explicitly quits a flow.
const DefaultQuitSuppression = 5 * time.Minute

// AcceptQuickTask starts the quick-task countdown the user accepted.
// From POST_CHOICE it performs a fresh grant; the offer-time grant already
// covered the OFFERING path.
func (g *Gate) AcceptQuickTask(ctx context.Context, deviceID, pkg string) error {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := g.readEntry(ctx, deviceID, pkg)
	switch entry.QuickTaskState {
	case domain.QuickTaskOffering:
		// Quota was granted when the offer was made.

	case domain.QuickTaskPostChoice:
		set := g.deviceSettings(ctx, d, deviceID)
		state, err := g.quota.Current(ctx, deviceID, set)
		if err != nil {
			return apperrors.StorageError("failed to read quota", err)
		}
		if state.Remaining == 0 {
			return apperrors.ConflictError("quota exhausted").WithField("package", pkg)
		}
		if _, err := g.quota.Grant(ctx, deviceID, set); err != nil {
			return apperrors.StorageError("failed to grant quota", err)
		}
		metrics.QuotaGrantsTotal.Inc()

	default:
		return apperrors.ConflictError("no quick-task offer pending").
			WithField("package", pkg).
			WithField("state", string(entry.QuickTaskState))
	}

	if _, err := g.entries.SetQuickTaskState(ctx, deviceID, pkg, domain.QuickTaskActive); err != nil {
		return apperrors.StorageError("failed to start quick task", err)
	}
	d.surfaceActive = false
	return nil
}

// DeclineQuickTask routes the user into the full intervention flow instead
// of the offered quick task.
func (g *Gate) DeclineQuickTask(ctx context.Context, deviceID, pkg string) error {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := g.readEntry(ctx, deviceID, pkg)
	switch entry.QuickTaskState {
	case domain.QuickTaskOffering, domain.QuickTaskPostChoice:
	default:
		return apperrors.ConflictError("no quick-task offer pending").
			WithField("package", pkg).
			WithField("state", string(entry.QuickTaskState))
	}

	set := g.deviceSettings(ctx, d, deviceID)
	return g.beginIntervention(ctx, d, deviceID, pkg, set, domain.WakeMonitoredAppForeground)
}

// ToggleCause selects or unselects a root cause on the root-cause screen.
func (g *Gate) ToggleCause(ctx context.Context, deviceID, cause string) error {
	if cause == "" {
		return apperrors.ValidationError("cause must not be empty")
	}
	_, err := g.applyFlowEvent(ctx, deviceID, flow.ToggleCause{Cause: cause})
	return err
}

// ProceedToAlternatives commits the cause selection.
func (g *Gate) ProceedToAlternatives(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.ProceedToAlternatives{})
	return err
}

// GoBackToRootCause returns to the root-cause screen, keeping selections.
func (g *Gate) GoBackToRootCause(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.GoBackToRootCause{})
	return err
}

// SelectAlternative records an alternative choice without committing it.
func (g *Gate) SelectAlternative(ctx context.Context, deviceID, id string, durationSec uint) error {
	if id == "" {
		return apperrors.ValidationError("alternative id must not be empty")
	}
	_, err := g.applyFlowEvent(ctx, deviceID, flow.SelectAlternative{ID: id, DurationSec: durationSec})
	return err
}

// ProceedToAction commits the selected alternative.
func (g *Gate) ProceedToAction(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.ProceedToAction{})
	return err
}

// GoBackFromAction returns from action to the alternatives screen.
func (g *Gate) GoBackFromAction(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.GoBackFromAction{})
	return err
}

// StartAlternative starts the action countdown. Entering action_timer
// durably preserves the flow, so it survives process death from here on.
func (g *Gate) StartAlternative(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.StartAlternative{})
	return err
}

// FinishAction ends the action early and moves to reflection.
func (g *Gate) FinishAction(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.FinishAction{})
	return err
}

// ProceedToTimer takes the "I need to use it" branch.
func (g *Gate) ProceedToTimer(ctx context.Context, deviceID string) error {
	_, err := g.applyFlowEvent(ctx, deviceID, flow.ProceedToTimer{})
	return err
}

// SetIntentionTimer completes the timer branch: it grants the intention
// window for the target app and returns the target so the shell can
// launch it. A non-positive duration falls back to the device default.
func (g *Gate) SetIntentionTimer(ctx context.Context, deviceID string, duration time.Duration) (string, error) {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	tr := g.applyFlowEventLocked(ctx, d, deviceID, flow.SetIntentionTimer{})
	if !tr.Applied {
		return "", apperrors.ConflictError("flow is not on the timer screen").WithField("state", string(tr.From))
	}

	target := d.flow.TargetApp
	if duration <= 0 {
		duration = g.deviceSettings(ctx, d, deviceID).IntentionDefault
	}
	if err := g.suppression.Suppress(ctx, deviceID, target, domain.SuppressionIntention, duration); err != nil {
		return "", apperrors.StorageError("failed to set intention window", err)
	}
	g.endSession(ctx, d, deviceID, target)
	slog.Info("Intention timer set", "device_id", deviceID, "package", target, "duration", duration)
	return target, nil
}

// FinishReflection completes the flow and tears the session down.
func (g *Gate) FinishReflection(ctx context.Context, deviceID string) error {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.flow.TargetApp
	tr := g.applyFlowEventLocked(ctx, d, deviceID, flow.FinishReflection{})
	if !tr.Applied {
		return apperrors.ConflictError("flow is not on the reflection screen").WithField("state", string(tr.From))
	}
	g.endSession(ctx, d, deviceID, target)
	return nil
}

// CancelFlow aborts whatever is in progress for pkg: an in-flight
// intervention, a quick-task offer, or a post-choice prompt. The package
// gets a quit-suppression window so it does not immediately retrigger.
func (g *Gate) CancelFlow(ctx context.Context, deviceID, pkg, reason string) error {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	if pkg == "" {
		pkg = d.flow.TargetApp
	}
	if pkg == "" {
		pkg = d.foreground
	}
	if pkg == "" {
		return apperrors.ValidationError("no package to cancel")
	}

	if d.flow.State != domain.FlowIdle && d.flow.TargetApp == pkg {
		g.applyFlowEventLocked(ctx, d, deviceID, flow.Reset{Cancelled: true, Reason: reason})
		g.endSession(ctx, d, deviceID, pkg)
	} else {
		// A prompt without a flow: drop the entry directly.
		if err := g.entries.Reset(ctx, deviceID, pkg); err != nil {
			slog.Warn("Failed to reset app entry", "device_id", deviceID, "package", pkg, "error", err)
		}
		d.surfaceActive = false
	}

	if err := g.suppression.Suppress(ctx, deviceID, pkg, domain.SuppressionQuit, DefaultQuitSuppression); err != nil {
		return apperrors.StorageError("failed to set quit suppression", err)
	}
	return nil
}

// SurfaceClosed records that the presentation surface left the screen.
// A short wake-suppression window absorbs the foreground signal the
// teardown itself generates.
func (g *Gate) SurfaceClosed(ctx context.Context, deviceID, pkg string) error {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.surfaceActive = false

	if pkg != "" {
		entry := g.readEntry(ctx, deviceID, pkg)
		if entry.QuickTaskState == domain.QuickTaskOffering {
			// Prompt dismissed without choosing.
			if err := g.entries.Reset(ctx, deviceID, pkg); err != nil {
				slog.Warn("Failed to reset dismissed offer", "device_id", deviceID, "package", pkg, "error", err)
			}
		}
		if err := g.suppression.Suppress(ctx, deviceID, pkg, domain.SuppressionWake, domain.DefaultWakeSuppression); err != nil {
			return apperrors.StorageError("failed to set wake suppression", err)
		}
	}
	return nil
}

// applyFlowEvent runs one reducer step under the device lock.
func (g *Gate) applyFlowEvent(ctx context.Context, deviceID string, ev flow.Event) (flow.Transition, error) {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return g.applyFlowEventLocked(ctx, d, deviceID, ev), nil
}

// applyFlowEventLocked reduces ev against the in-flight flow and runs the
// preservation protocol on the action_timer boundary: entering writes the
// durable snapshot and flags the entry, leaving clears both.
func (g *Gate) applyFlowEventLocked(ctx context.Context, d *deviceState, deviceID string, ev flow.Event) flow.Transition {
	prev := d.flow
	next, tr := flow.Apply(prev, ev, g.clock.Now())
	g.recordTransition(tr)
	if !tr.Applied {
		return tr
	}
	d.flow = next

	entered := tr.To == domain.FlowActionTimer && tr.From != domain.FlowActionTimer
	left := tr.From == domain.FlowActionTimer && tr.To != domain.FlowActionTimer

	if entered {
		snapshot := domain.PreservedFlow{
			TargetApp:   next.TargetApp,
			DurationSec: next.ActionDurationSec,
			StartedAt:   next.ActionStartedAt,
		}
		if err := g.snapshots.Put(ctx, deviceID, snapshot); err != nil {
			slog.Error("Failed to preserve flow snapshot", "device_id", deviceID, "error", err)
		}
		if _, err := g.entries.MarkPreserved(ctx, deviceID, next.TargetApp, true); err != nil {
			slog.Error("Failed to flag preserved entry", "device_id", deviceID, "error", err)
		}
	}
	if left {
		if err := g.snapshots.Delete(ctx, deviceID); err != nil {
			slog.Warn("Failed to delete flow snapshot", "device_id", deviceID, "error", err)
		}
		if _, err := g.entries.MarkPreserved(ctx, deviceID, prev.TargetApp, false); err != nil {
			slog.Warn("Failed to clear preserved flag", "device_id", deviceID, "error", err)
		}
	}
	return tr
}
