// Package gate is the application layer: the only component that touches
// every registry. It serializes foreground signals per device, feeds the
// decision engine an immutable snapshot, applies the chosen action, and
// runs the preservation/resume protocol around process death.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/flyimmer/breakloop-native-sub009/internal/appstate"
	"github.com/flyimmer/breakloop-native-sub009/internal/decision"
	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/flow"
	"github.com/flyimmer/breakloop-native-sub009/internal/metrics"
	"github.com/flyimmer/breakloop-native-sub009/internal/quota"
	"github.com/flyimmer/breakloop-native-sub009/internal/suppression"
)

// Gate arbitrates foreground signals and drives the intervention flow.
type Gate struct {
	settings    domain.SettingsRepository
	quota       *quota.Store
	suppression *suppression.Registry
	entries     *appstate.Registry
	snapshots   domain.FlowSnapshotRepository
	publisher   domain.SurfacePublisher
	clock       clockwork.Clock

	settingsTTL   time.Duration
	settingsGroup singleflight.Group

	mu      sync.Mutex
	devices map[string]*deviceState
}

// deviceState is the runtime-only state of one device. It deliberately
// dies with the process: recovery goes through the durable snapshot, not
// through this struct.
type deviceState struct {
	// mu serializes all arbitration for the device. Several decision rules
	// are cross-app (surface active, suppression), so signals for
	// different packages must see a consistent snapshot.
	mu sync.Mutex

	flow          domain.FlowContext
	surfaceActive bool
	foreground    string

	// sessions marks packages owned by an active presentation session.
	// Not persisted: a dead process has no sessions.
	sessions map[string]bool

	cachedSettings   domain.DeviceSettings
	settingsLoadedAt time.Time
}

func New(settings domain.SettingsRepository, quotaStore *quota.Store, sup *suppression.Registry, entries *appstate.Registry, snapshots domain.FlowSnapshotRepository, publisher domain.SurfacePublisher, clock clockwork.Clock, settingsTTL time.Duration) *Gate {
	return &Gate{
		settings:    settings,
		quota:       quotaStore,
		suppression: sup,
		entries:     entries,
		snapshots:   snapshots,
		publisher:   publisher,
		clock:       clock,
		settingsTTL: settingsTTL,
		devices:     make(map[string]*deviceState),
	}
}

func (g *Gate) device(deviceID string) *deviceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.devices[deviceID]
	if !ok {
		d = &deviceState{flow: flow.Idle(), sessions: make(map[string]bool)}
		g.devices[deviceID] = d
	}
	return d
}

func (g *Gate) deviceIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.devices))
	for id := range g.devices {
		ids = append(ids, id)
	}
	return ids
}

// deviceSettings loads settings with a small TTL cache. Concurrent cold
// loads for the same device collapse through singleflight. A read failure
// fails open to the defaults (nothing monitored) so a storage fault never
// blocks normal phone use.
func (g *Gate) deviceSettings(ctx context.Context, d *deviceState, deviceID string) domain.DeviceSettings {
	if !d.settingsLoadedAt.IsZero() && g.clock.Since(d.settingsLoadedAt) < g.settingsTTL {
		return d.cachedSettings
	}

	v, err, _ := g.settingsGroup.Do(deviceID, func() (any, error) {
		return g.settings.Get(ctx, deviceID)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			metrics.StorageFailOpenTotal.WithLabelValues("settings").Inc()
			slog.Warn("Settings read failed, failing open", "device_id", deviceID, "error", err)
		}
		set := domain.DefaultSettings(deviceID)
		d.cachedSettings = set
		d.settingsLoadedAt = g.clock.Now()
		return set
	}

	set := v.(domain.DeviceSettings)
	d.cachedSettings = set
	d.settingsLoadedAt = g.clock.Now()
	return set
}

// InvalidateSettings drops the cached settings for a device so the next
// arbitration sees a fresh copy. Called by the admin API after an update;
// the quota store re-aligns and force-refills on the next read.
func (g *Gate) InvalidateSettings(deviceID string) {
	d := g.device(deviceID)
	d.mu.Lock()
	d.settingsLoadedAt = time.Time{}
	d.mu.Unlock()
}

// HandleForeground arbitrates one "(app, timestamp) changed" signal and
// applies the resulting action. It returns the decision so the OS shell
// can log or act on it synchronously.
func (g *Gate) HandleForeground(ctx context.Context, ev domain.ForegroundEvent) (domain.Decision, error) {
	start := g.clock.Now()
	defer func() {
		metrics.ArbitrationDuration.Observe(g.clock.Since(start).Seconds())
	}()

	d := g.device(ev.DeviceID)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.foreground = ev.PackageName
	now := g.clock.Now()

	set := g.deviceSettings(ctx, d, ev.DeviceID)
	monitored := set.Monitors(ev.PackageName)

	entry := g.readEntry(ctx, ev.DeviceID, ev.PackageName)
	entry.HasActiveSession = d.sessions[ev.PackageName]

	// A quick task that lapsed while the user was away materializes as
	// POST_CHOICE on re-entry, with its own wake reason.
	if entry.QuickTaskState == domain.QuickTaskActive &&
		entry.QuickTaskRemaining(now, time.Duration(set.QuickTaskDurationSec)*time.Second) == 0 {
		entry = g.moveToPostChoice(ctx, d, ev.DeviceID, ev.PackageName, domain.WakePostQuickTaskChoice)
	}

	sup := g.readSuppression(ctx, ev.DeviceID, ev.PackageName)
	quotaState := g.readQuota(ctx, ev.DeviceID, set)

	in := decision.Input{
		Package:       ev.PackageName,
		Now:           now,
		Monitored:     monitored,
		Entry:         entry,
		Quota:         quotaState,
		Suppression:   sup,
		SurfaceActive: d.surfaceActive,
		ForceEntry:    ev.ForceEntry,
	}

	dec := decision.Evaluate(in)
	metrics.DecisionsTotal.WithLabelValues(string(dec.Action), string(dec.Reason)).Inc()
	slog.Debug("Arbitrated foreground signal",
		"device_id", ev.DeviceID, "package", ev.PackageName,
		"action", dec.Action, "reason", dec.Reason)

	if err := g.apply(ctx, d, ev.DeviceID, ev.PackageName, set, dec); err != nil {
		return dec, err
	}
	return dec, nil
}

// apply mutates the registries according to the decision. Evaluate itself
// is side-effect free; this is the caller-driven step.
func (g *Gate) apply(ctx context.Context, d *deviceState, deviceID, pkg string, set domain.DeviceSettings, dec domain.Decision) error {
	switch dec.Action {
	case domain.NoAction:
		return nil

	case domain.StartQuickTask:
		// The grant happens here, not inside Evaluate, so a snapshot
		// re-evaluation cannot double-decrement.
		state, err := g.quota.Grant(ctx, deviceID, set)
		if err != nil {
			return err
		}
		metrics.QuotaGrantsTotal.Inc()
		if _, err := g.entries.SetQuickTaskState(ctx, deviceID, pkg, domain.QuickTaskOffering); err != nil {
			return err
		}
		g.pushSurface(d, deviceID, domain.Surface{
			WakeReason:     domain.WakeMonitoredAppForeground,
			TriggeringApp:  pkg,
			QuotaRemaining: state.Remaining,
		})
		return nil

	case domain.StartIntervention:
		if dec.Reason == domain.ReasonResumePreserved {
			return g.resumePreserved(ctx, d, deviceID, pkg)
		}
		return g.beginIntervention(ctx, d, deviceID, pkg, set, domain.WakeMonitoredAppForeground)
	}
	return nil
}

// beginIntervention starts (or restarts) the flow for pkg and launches the
// surface. Also covers in-progress re-entries with no durable snapshot:
// state lost before action_timer restarts from breathing.
func (g *Gate) beginIntervention(ctx context.Context, d *deviceState, deviceID, pkg string, set domain.DeviceSettings, wake domain.WakeReason) error {
	// Flow still alive in memory for the same target: just relaunch the
	// surface, do not restart breathing.
	if d.flow.State != domain.FlowIdle && d.flow.TargetApp == pkg {
		g.markSessionStarted(ctx, d, deviceID, pkg)
		g.pushSurface(d, deviceID, domain.Surface{WakeReason: wake, TriggeringApp: pkg})
		return nil
	}

	next, tr := flow.Apply(d.flow, flow.Begin{TargetApp: pkg, BreathingDurationSec: set.BreathingDurationSec}, g.clock.Now())
	g.recordTransition(tr)
	if tr.Applied && d.flow.State != domain.FlowIdle && d.flow.TargetApp != pkg {
		// The previous target's flow is discarded wholesale; release its
		// session ownership and any stale snapshot.
		g.endSession(ctx, d, deviceID, d.flow.TargetApp)
	}
	d.flow = next

	g.markSessionStarted(ctx, d, deviceID, pkg)
	g.pushSurface(d, deviceID, domain.Surface{WakeReason: wake, TriggeringApp: pkg})
	return nil
}

// resumePreserved reconstructs the flow from the durable snapshot instead
// of starting fresh from breathing. A missing or foreign snapshot falls
// back to a fresh flow and clears the stale preserved flag.
func (g *Gate) resumePreserved(ctx context.Context, d *deviceState, deviceID, pkg string) error {
	set := d.cachedSettings

	snapshot, err := g.snapshots.Get(ctx, deviceID)
	if err != nil || snapshot.TargetApp != pkg {
		if err != nil && !errors.Is(err, domain.ErrNoPreservedFlow) {
			metrics.StorageFailOpenTotal.WithLabelValues("flow_snapshot").Inc()
			slog.Warn("Preserved snapshot read failed, starting fresh", "device_id", deviceID, "error", err)
		}
		if _, err := g.entries.MarkPreserved(ctx, deviceID, pkg, false); err != nil {
			slog.Warn("Failed to clear stale preserved flag", "device_id", deviceID, "package", pkg, "error", err)
		}
		return g.beginIntervention(ctx, d, deviceID, pkg, set, domain.WakeMonitoredAppForeground)
	}

	if d.flow.State != domain.FlowIdle && d.flow.TargetApp != pkg {
		// Resuming displaces any other in-memory flow, so the old target
		// must release its session ownership. endSession drops the device
		// snapshot, which here belongs to the flow being resumed; write it
		// back.
		g.endSession(ctx, d, deviceID, d.flow.TargetApp)
		if err := g.snapshots.Put(ctx, deviceID, snapshot); err != nil {
			slog.Error("Failed to restore flow snapshot", "device_id", deviceID, "error", err)
		}
	}

	d.flow = flow.Resumed(snapshot)
	metrics.PreservedResumesTotal.Inc()
	slog.Info("Resumed preserved intervention",
		"device_id", deviceID, "package", pkg,
		"remaining_sec", d.flow.ActionRemaining(g.clock.Now()))

	g.markSessionStarted(ctx, d, deviceID, pkg)
	g.pushSurface(d, deviceID, domain.Surface{WakeReason: domain.WakeMonitoredAppForeground, TriggeringApp: pkg})
	return nil
}

// markSessionStarted flags pkg as owned by an intervention session and
// stamps the emission time for the resume debounce.
func (g *Gate) markSessionStarted(ctx context.Context, d *deviceState, deviceID, pkg string) {
	d.sessions[pkg] = true
	if _, err := g.entries.SetQuickTaskState(ctx, deviceID, pkg, domain.QuickTaskInterventionActive); err != nil {
		slog.Warn("Failed to mark intervention active", "device_id", deviceID, "package", pkg, "error", err)
	}
	if _, err := g.entries.StampInterventionEmitted(ctx, deviceID, pkg); err != nil {
		slog.Warn("Failed to stamp intervention emission", "device_id", deviceID, "package", pkg, "error", err)
	}
}

// endSession tears down the session for pkg. Idempotent: a second
// end-of-session for the same package is a logged no-op, so a duplicated
// teardown signal cannot double-apply.
func (g *Gate) endSession(ctx context.Context, d *deviceState, deviceID, pkg string) {
	if pkg == "" {
		return
	}
	if !d.sessions[pkg] {
		slog.Debug("Session already ended", "device_id", deviceID, "package", pkg)
		return
	}
	d.sessions[pkg] = false
	d.surfaceActive = false

	if err := g.entries.Reset(ctx, deviceID, pkg); err != nil {
		slog.Warn("Failed to reset app entry", "device_id", deviceID, "package", pkg, "error", err)
	}
	if err := g.snapshots.Delete(ctx, deviceID); err != nil {
		slog.Warn("Failed to delete flow snapshot", "device_id", deviceID, "error", err)
	}
	if err := g.suppression.Suppress(ctx, deviceID, pkg, domain.SuppressionWake, domain.DefaultWakeSuppression); err != nil {
		slog.Warn("Failed to set wake suppression", "device_id", deviceID, "package", pkg, "error", err)
	}
}

func (g *Gate) moveToPostChoice(ctx context.Context, d *deviceState, deviceID, pkg string, wake domain.WakeReason) domain.AppEntry {
	entry, err := g.entries.SetQuickTaskState(ctx, deviceID, pkg, domain.QuickTaskPostChoice)
	if err != nil {
		slog.Warn("Failed to move entry to post-choice", "device_id", deviceID, "package", pkg, "error", err)
		entry = domain.AppEntry{QuickTaskState: domain.QuickTaskPostChoice}
	}
	if !d.surfaceActive {
		g.pushSurface(d, deviceID, domain.Surface{WakeReason: wake, TriggeringApp: pkg})
	}
	entry.HasActiveSession = d.sessions[pkg]
	return entry
}

func (g *Gate) pushSurface(d *deviceState, deviceID string, surface domain.Surface) {
	d.surfaceActive = true
	metrics.SurfacePushesTotal.WithLabelValues(string(surface.WakeReason)).Inc()
	g.publisher.Publish(deviceID, surface)
}

func (g *Gate) recordTransition(tr flow.Transition) {
	if tr.Applied {
		metrics.FlowTransitionsTotal.WithLabelValues(string(tr.From), string(tr.To)).Inc()
		return
	}
	metrics.FlowIgnoredEventsTotal.Inc()
	slog.Debug("Flow event ignored", "from", tr.From, "note", tr.Note)
}

// --- fail-open registry reads: a storage fault must never crash or block
// arbitration; defaults are empty/zero/none ---

func (g *Gate) readEntry(ctx context.Context, deviceID, pkg string) domain.AppEntry {
	entry, err := g.entries.Get(ctx, deviceID, pkg)
	if err != nil {
		metrics.StorageFailOpenTotal.WithLabelValues("app_entry").Inc()
		slog.Warn("App entry read failed, failing open", "device_id", deviceID, "package", pkg, "error", err)
		return domain.AppEntry{QuickTaskState: domain.QuickTaskNone}
	}
	return entry
}

func (g *Gate) readSuppression(ctx context.Context, deviceID, pkg string) domain.SuppressionSet {
	sup, err := g.suppression.Snapshot(ctx, deviceID, pkg)
	if err != nil {
		metrics.StorageFailOpenTotal.WithLabelValues("suppression").Inc()
		slog.Warn("Suppression read failed, failing open", "device_id", deviceID, "package", pkg, "error", err)
		return domain.SuppressionSet{}
	}
	return sup
}

func (g *Gate) readQuota(ctx context.Context, deviceID string, set domain.DeviceSettings) domain.QuotaState {
	state, err := g.quota.Current(ctx, deviceID, set)
	if err != nil {
		metrics.StorageFailOpenTotal.WithLabelValues("quota").Inc()
		slog.Warn("Quota read failed, failing open", "device_id", deviceID, "error", err)
		return domain.QuotaState{Max: set.MaxQuotaPerWindow, Remaining: 0, Window: set.Window}
	}
	return state
}

// Now reads the gate's clock, so transport handlers derive countdowns
// from the same clock the registries use.
func (g *Gate) Now() time.Time {
	return g.clock.Now()
}

// Flow returns a copy of the device's in-flight flow context.
func (g *Gate) Flow(deviceID string) domain.FlowContext {
	d := g.device(deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flow
}
