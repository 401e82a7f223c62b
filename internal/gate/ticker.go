package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/flow"
)

// Run drives the low-frequency tick loop until ctx is cancelled. Ticks
// only refresh countdown-derived completions; they are never load-bearing
// for correctness, because every countdown is recomputed from stored
// timestamps. A tick that fires after a completion guard is a no-op.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Gate ticker started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.Tick(ctx)
		}
	}
}

// Tick runs one pass over all known devices.
func (g *Gate) Tick(ctx context.Context) {
	for _, deviceID := range g.deviceIDs() {
		d := g.device(deviceID)
		d.mu.Lock()
		g.tickDevice(ctx, d, deviceID)
		d.mu.Unlock()
	}
}

func (g *Gate) tickDevice(ctx context.Context, d *deviceState, deviceID string) {
	now := g.clock.Now()

	// Countdown completions for the in-flight flow. The reducer's
	// state-match guard makes a stale tick harmless.
	switch d.flow.State {
	case domain.FlowBreathing:
		if !d.flow.BreathingCompleted && d.flow.BreathingRemaining(now) == 0 {
			g.applyFlowEventLocked(ctx, d, deviceID, flow.BreathingComplete{})
		}
	case domain.FlowActionTimer:
		if d.flow.ActionRemaining(now) == 0 {
			g.applyFlowEventLocked(ctx, d, deviceID, flow.ActionTimerComplete{})
		}
	}

	if d.foreground == "" {
		return
	}

	set := g.deviceSettings(ctx, d, deviceID)
	if !set.Monitors(d.foreground) {
		return
	}

	// Quick task lapsing while the app is still on screen forces the
	// post-choice prompt.
	entry := g.readEntry(ctx, deviceID, d.foreground)
	quickTaskDuration := time.Duration(set.QuickTaskDurationSec) * time.Second
	if entry.QuickTaskState == domain.QuickTaskActive &&
		entry.QuickTaskRemaining(now, quickTaskDuration) == 0 {
		g.moveToPostChoice(ctx, d, deviceID, d.foreground, domain.WakeQuickTaskExpired)
	}

	// Checkpoint: an intention window expiring while its app is still
	// foregrounded forces a new decision.
	sup := g.readSuppression(ctx, deviceID, d.foreground)
	if !sup.IntentionUntil.IsZero() && !sup.IntentionUntil.After(now) {
		if err := g.suppression.Clear(ctx, deviceID, d.foreground, domain.SuppressionIntention); err != nil {
			slog.Warn("Failed to clear expired intention", "device_id", deviceID, "package", d.foreground, "error", err)
		}
		if !d.surfaceActive {
			g.pushSurface(d, deviceID, domain.Surface{
				WakeReason:    domain.WakeIntentionExpired,
				TriggeringApp: d.foreground,
			})
		}
	}
}
