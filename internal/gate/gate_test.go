package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyimmer/breakloop-native-sub009/internal/appstate"
	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/memory"
	"github.com/flyimmer/breakloop-native-sub009/internal/quota"
	"github.com/flyimmer/breakloop-native-sub009/internal/suppression"
)

const (
	testDevice = "device-1"
	doomApp    = "com.example.doomscroll"
	otherApp   = "com.example.other"
	benignApp  = "com.example.calculator"
)

// --- Mocks ---

type recordedPush struct {
	DeviceID string
	Surface  domain.Surface
}

type mockPublisher struct {
	mu     sync.Mutex
	pushes []recordedPush
}

func (m *mockPublisher) Publish(deviceID string, surface domain.Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, recordedPush{deviceID, surface})
}

func (m *mockPublisher) last(t *testing.T) recordedPush {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.pushes, "expected at least one surface push")
	return m.pushes[len(m.pushes)-1]
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushes)
}

// --- Fixture ---

type fixture struct {
	gate      *Gate
	store     *memory.Store
	clock     *clockwork.FakeClock
	publisher *mockPublisher
}

func testDeviceSettings() domain.DeviceSettings {
	return domain.DeviceSettings{
		DeviceID:             testDevice,
		MonitoredPackages:    []string{doomApp, otherApp},
		MaxQuotaPerWindow:    2,
		Window:               domain.Window1h,
		BreathingDurationSec: 30,
		QuickTaskDurationSec: 300,
		IntentionDefault:     10 * time.Minute,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Settings.Upsert(context.Background(), testDeviceSettings()))
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC))
	return attachGate(t, store, clock)
}

// attachGate builds a Gate over an existing store, modelling a (re)started
// process: runtime state is empty, only the store survives.
func attachGate(t *testing.T, store *memory.Store, clock *clockwork.FakeClock) *fixture {
	t.Helper()
	publisher := &mockPublisher{}
	quotaStore := quota.NewStore(store.Quotas, clock)
	supRegistry := suppression.NewRegistry(store.Suppressions, clock)
	entries := appstate.NewRegistry(store.Entries, clock)
	g := New(store.Settings, quotaStore, supRegistry, entries, store.Snapshots, publisher, clock, time.Minute)
	return &fixture{gate: g, store: store, clock: clock, publisher: publisher}
}

func (f *fixture) foreground(t *testing.T, pkg string) domain.Decision {
	t.Helper()
	dec, err := f.gate.HandleForeground(context.Background(), domain.ForegroundEvent{
		DeviceID:    testDevice,
		PackageName: pkg,
		Timestamp:   f.clock.Now(),
	})
	require.NoError(t, err)
	return dec
}

// walkToActionTimer drives a declined offer through the flow up to the
// running action timer.
func (f *fixture) walkToActionTimer(t *testing.T, durationSec uint) {
	t.Helper()
	ctx := context.Background()

	dec := f.foreground(t, doomApp)
	require.Equal(t, domain.StartQuickTask, dec.Action)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))

	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.Equal(t, domain.FlowRootCause, f.gate.Flow(testDevice).State)

	require.NoError(t, f.gate.ToggleCause(ctx, testDevice, "boredom"))
	require.NoError(t, f.gate.ProceedToAlternatives(ctx, testDevice))
	require.NoError(t, f.gate.SelectAlternative(ctx, testDevice, "walk", durationSec))
	require.NoError(t, f.gate.ProceedToAction(ctx, testDevice))
	require.NoError(t, f.gate.StartAlternative(ctx, testDevice))
	require.Equal(t, domain.FlowActionTimer, f.gate.Flow(testDevice).State)
}

// --- Arbitration ---

func TestUnmonitoredAppIsIgnored(t *testing.T) {
	f := newFixture(t)

	dec := f.foreground(t, benignApp)
	assert.Equal(t, domain.NoAction, dec.Action)
	assert.Equal(t, domain.ReasonNotMonitored, dec.Reason)
	assert.Zero(t, f.publisher.count())
}

func TestQuickTaskOfferGrantsAtOfferTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.StartQuickTask, dec.Action)
	assert.Equal(t, domain.ReasonQuotaAvailable, dec.Reason)

	push := f.publisher.last(t)
	assert.Equal(t, domain.WakeMonitoredAppForeground, push.Surface.WakeReason)
	assert.Equal(t, doomApp, push.Surface.TriggeringApp)
	assert.Equal(t, uint(1), push.Surface.QuotaRemaining, "grant happens when the offer is made")

	// Re-entry while the offer is on screen must not double-grant.
	dec = f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonOfferPending, dec.Reason)

	state, err := f.store.Quotas.Get(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.Remaining)
}

func TestAcceptedQuickTaskRunsQuietly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp))

	// No new prompt while the countdown runs.
	f.clock.Advance(time.Minute)
	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.NoAction, dec.Action)
	assert.Equal(t, domain.ReasonQuickTaskRunning, dec.Reason)
}

func TestAcceptWithoutOfferIsRejected(t *testing.T) {
	f := newFixture(t)

	err := f.gate.AcceptQuickTask(context.Background(), testDevice, doomApp)
	assert.Error(t, err)
}

func TestQuickTaskExpiryWhileForegrounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp))

	f.clock.Advance(301 * time.Second)
	f.gate.Tick(ctx)

	push := f.publisher.last(t)
	assert.Equal(t, domain.WakeQuickTaskExpired, push.Surface.WakeReason)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonPostChoicePending, dec.Reason)
}

func TestQuickTaskExpiryOnReEntry(t *testing.T) {
	// The user left the app, the quick task lapsed unseen, and they come
	// back: the post-choice prompt materializes on the signal itself.
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp))
	f.foreground(t, benignApp)

	f.clock.Advance(10 * time.Minute)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonPostChoicePending, dec.Reason)

	push := f.publisher.last(t)
	assert.Equal(t, domain.WakePostQuickTaskChoice, push.Surface.WakeReason)
}

func TestPostChoiceAcceptConsumesFreshGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp)) // quota 2 -> 1
	f.clock.Advance(301 * time.Second)
	f.gate.Tick(ctx)

	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp)) // 1 -> 0

	state, err := f.store.Quotas.Get(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, uint(0), state.Remaining)

	// Third round: exhausted, the accept must fail.
	f.clock.Advance(301 * time.Second)
	f.gate.Tick(ctx)
	err = f.gate.AcceptQuickTask(ctx, testDevice, doomApp)
	assert.Error(t, err, "no quota left for another quick task")
}

func TestExhaustedQuotaStartsIntervention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Burn the whole allowance.
	for i := 0; i < 2; i++ {
		f.foreground(t, doomApp)
		require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp))
		f.clock.Advance(301 * time.Second)
		require.NoError(t, f.gate.CancelFlow(ctx, testDevice, doomApp, "done"))
		f.clock.Advance(DefaultQuitSuppression + time.Second)
	}

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.StartIntervention, dec.Action)
	assert.Equal(t, domain.ReasonQuotaExhausted, dec.Reason)
	assert.Equal(t, domain.FlowBreathing, f.gate.Flow(testDevice).State)
}

func TestQuotaRefillsNextWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.AcceptQuickTask(ctx, testDevice, doomApp))

	f.clock.Advance(time.Hour)

	state, err := quota.NewStore(f.store.Quotas, f.clock).Current(ctx, testDevice, testDeviceSettings())
	require.NoError(t, err)
	assert.Equal(t, uint(2), state.Remaining)
}

// --- Intervention flow ---

func TestDeclineStartsIntervention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))

	flow := f.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowBreathing, flow.State)
	assert.Equal(t, doomApp, flow.TargetApp)
	assert.Equal(t, uint(30), flow.BreathingRemaining(f.clock.Now()))

	// The session owns the app now: no re-arbitration.
	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonSessionActive, dec.Reason)
}

func TestBreathingCompletesViaTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))

	f.clock.Advance(29 * time.Second)
	f.gate.Tick(ctx)
	assert.Equal(t, domain.FlowBreathing, f.gate.Flow(testDevice).State, "one second early")

	f.clock.Advance(time.Second)
	f.gate.Tick(ctx)
	assert.Equal(t, domain.FlowRootCause, f.gate.Flow(testDevice).State)

	// Extra ticks change nothing.
	f.gate.Tick(ctx)
	assert.Equal(t, domain.FlowRootCause, f.gate.Flow(testDevice).State)
}

func TestActionTimerPreservesAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.walkToActionTimer(t, 600)

	snapshot, err := f.store.Snapshots.Get(ctx, testDevice)
	require.NoError(t, err, "entering action_timer must write the durable snapshot")
	assert.Equal(t, doomApp, snapshot.TargetApp)
	assert.Equal(t, uint(600), snapshot.DurationSec)

	entry, err := f.store.Entries.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.True(t, entry.InterventionPreserved)

	f.clock.Advance(600 * time.Second)
	f.gate.Tick(ctx)
	assert.Equal(t, domain.FlowReflection, f.gate.Flow(testDevice).State)

	_, err = f.store.Snapshots.Get(ctx, testDevice)
	assert.ErrorIs(t, err, domain.ErrNoPreservedFlow, "leaving action_timer clears the snapshot")
}

func TestFinishReflectionTearsDownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.walkToActionTimer(t, 60)
	require.NoError(t, f.gate.FinishAction(ctx, testDevice))
	require.NoError(t, f.gate.FinishReflection(ctx, testDevice))

	flow := f.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowIdle, flow.State)
	assert.True(t, flow.WasCompleted)

	entry, err := f.store.Entries.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.Equal(t, domain.AppEntry{}, entry, "entry resets to nothing-in-progress")

	// The teardown's own foreground echo is absorbed.
	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonWakeSuppressed, dec.Reason)
}

// --- Preservation and resume across process death ---

func TestPreservedInterventionSurvivesProcessDeath(t *testing.T) {
	f := newFixture(t)

	f.walkToActionTimer(t, 600)
	f.clock.Advance(4 * time.Minute)

	// Process death: a fresh Gate over the same store.
	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)

	dec := f2.foreground(t, doomApp)
	assert.Equal(t, domain.StartIntervention, dec.Action)
	assert.Equal(t, domain.ReasonResumePreserved, dec.Reason)

	flow := f2.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowActionTimer, flow.State)
	assert.Equal(t, doomApp, flow.TargetApp)

	// 4m01s of the 10m elapsed, dead time included.
	assert.Equal(t, uint(359), flow.ActionRemaining(f2.clock.Now()))
}

func TestResumeDebounce(t *testing.T) {
	f := newFixture(t)
	f.walkToActionTimer(t, 600)

	// First restart resumes and stamps the emission time.
	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)
	dec := f2.foreground(t, doomApp)
	require.Equal(t, domain.ReasonResumePreserved, dec.Reason)

	// Second restart immediately after: the repeated signal inside the
	// debounce window is an echo, not a user switch.
	f3 := attachGate(t, f.store, f.clock)
	f3.clock.Advance(500 * time.Millisecond)
	dec = f3.foreground(t, doomApp)
	assert.Equal(t, domain.NoAction, dec.Action)
	assert.Equal(t, domain.ReasonResumeDebounced, dec.Reason)

	f3.clock.Advance(time.Second)
	dec = f3.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonResumePreserved, dec.Reason)
}

func TestResumeOutranksQuotaAndSuppression(t *testing.T) {
	f := newFixture(t)
	f.walkToActionTimer(t, 600)

	require.NoError(t, suppression.NewRegistry(f.store.Suppressions, f.clock).
		Suppress(context.Background(), testDevice, doomApp, domain.SuppressionQuit, time.Hour))

	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)
	dec := f2.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonResumePreserved, dec.Reason, "preservation outranks quit suppression")
}

func TestResumeReleasesDisplacedFlowSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.walkToActionTimer(t, 600)

	// Restart, then open a fresh intervention for the other app before the
	// preserved one resumes.
	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)
	dec := f2.foreground(t, otherApp)
	require.Equal(t, domain.StartQuickTask, dec.Action)
	require.NoError(t, f2.gate.DeclineQuickTask(ctx, testDevice, otherApp))
	require.Equal(t, otherApp, f2.gate.Flow(testDevice).TargetApp)

	// The preserved flow for the first app displaces the in-memory one.
	dec = f2.foreground(t, doomApp)
	require.Equal(t, domain.ReasonResumePreserved, dec.Reason)
	require.Equal(t, doomApp, f2.gate.Flow(testDevice).TargetApp)

	// The resumed flow keeps its durable snapshot.
	snapshot, err := f2.store.Snapshots.Get(ctx, testDevice)
	require.NoError(t, err)
	assert.Equal(t, doomApp, snapshot.TargetApp)

	// Ride the resumed flow out.
	f2.clock.Advance(10 * time.Minute)
	f2.gate.Tick(ctx)
	require.Equal(t, domain.FlowReflection, f2.gate.Flow(testDevice).State)
	require.NoError(t, f2.gate.FinishReflection(ctx, testDevice))

	// Long after every suppression window is over, the displaced app must
	// arbitrate normally again instead of being owned by a dead session.
	f2.clock.Advance(time.Hour)
	dec = f2.foreground(t, otherApp)
	assert.NotEqual(t, domain.ReasonSessionActive, dec.Reason)
	assert.Equal(t, domain.StartQuickTask, dec.Action)
	assert.Equal(t, domain.ReasonQuotaAvailable, dec.Reason)
}

func TestMissingSnapshotFallsBackToFreshFlow(t *testing.T) {
	f := newFixture(t)
	f.walkToActionTimer(t, 600)

	// The preserved flag survives but the snapshot is gone.
	require.NoError(t, f.store.Snapshots.Delete(context.Background(), testDevice))

	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)
	dec := f2.foreground(t, doomApp)
	require.Equal(t, domain.StartIntervention, dec.Action)

	flow := f2.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowBreathing, flow.State, "lost snapshots restart from breathing")

	entry, err := f2.store.Entries.Get(context.Background(), testDevice, doomApp)
	require.NoError(t, err)
	assert.False(t, entry.InterventionPreserved, "stale flag cleared")
}

func TestPreBreathingStateDiesWithProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.NoError(t, f.gate.ToggleCause(ctx, testDevice, "boredom"))

	// Death before action_timer: no snapshot, flow restarts from scratch.
	f2 := attachGate(t, f.store, f.clock)
	f2.clock.Advance(time.Second)
	f2.foreground(t, doomApp)

	flow := f2.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowBreathing, flow.State)
	assert.Empty(t, flow.SelectedCauses)
}

// --- Timer branch and intention windows ---

func TestIntentionTimerGrantsFreeUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.NoError(t, f.gate.ProceedToTimer(ctx, testDevice))

	target, err := f.gate.SetIntentionTimer(ctx, testDevice, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, doomApp, target)
	assert.Equal(t, domain.FlowIdle, f.gate.Flow(testDevice).State)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonIntentionActive, dec.Reason)

	// Other monitored apps are not covered by the grant.
	dec = f.foreground(t, otherApp)
	assert.NotEqual(t, domain.ReasonIntentionActive, dec.Reason)
}

func TestIntentionDefaultDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.NoError(t, f.gate.ProceedToTimer(ctx, testDevice))

	_, err := f.gate.SetIntentionTimer(ctx, testDevice, 0)
	require.NoError(t, err)

	set, err := f.store.Suppressions.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, set.Remaining(domain.SuppressionIntention, f.clock.Now()))
}

func TestIntentionExpiryCheckpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.NoError(t, f.gate.ProceedToTimer(ctx, testDevice))
	_, err := f.gate.SetIntentionTimer(ctx, testDevice, 5*time.Minute)
	require.NoError(t, err)

	// Still inside the window: nothing happens.
	before := f.publisher.count()
	f.clock.Advance(4 * time.Minute)
	f.gate.Tick(ctx)
	assert.Equal(t, before, f.publisher.count())

	// The window lapses while the app is still foregrounded: checkpoint.
	f.clock.Advance(2 * time.Minute)
	f.gate.Tick(ctx)
	push := f.publisher.last(t)
	assert.Equal(t, domain.WakeIntentionExpired, push.Surface.WakeReason)
	assert.Equal(t, doomApp, push.Surface.TriggeringApp)

	set, err := f.store.Suppressions.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.True(t, set.IntentionUntil.IsZero(), "expired window is cleared, not left to linger")
}

// --- Cancel, close, suppression ---

func TestCancelFlowSetsQuitSuppression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	require.NoError(t, f.gate.CancelFlow(ctx, testDevice, doomApp, "user_quit"))

	flow := f.gate.Flow(testDevice)
	assert.Equal(t, domain.FlowIdle, flow.State)
	assert.True(t, flow.WasCancelled)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonQuitSuppressed, dec.Reason)

	// Quit suppression expires.
	f.clock.Advance(DefaultQuitSuppression + time.Second)
	dec = f.foreground(t, doomApp)
	assert.Equal(t, domain.StartQuickTask, dec.Action)
}

func TestForceEntryBypassesQuitSuppression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	require.NoError(t, f.gate.CancelFlow(ctx, testDevice, doomApp, "user_quit"))

	dec, err := f.gate.HandleForeground(ctx, domain.ForegroundEvent{
		DeviceID:    testDevice,
		PackageName: doomApp,
		Timestamp:   f.clock.Now(),
		ForceEntry:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StartQuickTask, dec.Action)
}

func TestSurfaceClosedDismissesOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.SurfaceClosed(ctx, testDevice, doomApp))

	entry, err := f.store.Entries.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.Equal(t, domain.AppEntry{}, entry, "dismissed offer resets the entry")

	// The teardown echo is absorbed by wake suppression.
	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonWakeSuppressed, dec.Reason)

	f.clock.Advance(domain.DefaultWakeSuppression + time.Second)
	dec = f.foreground(t, doomApp)
	assert.Equal(t, domain.StartQuickTask, dec.Action, "wake window over, arbitration runs again")
}

func TestSurfaceActiveBlocksOtherApps(t *testing.T) {
	f := newFixture(t)

	dec := f.foreground(t, doomApp)
	require.Equal(t, domain.StartQuickTask, dec.Action)

	// A different monitored app foregrounds while the prompt is up.
	dec = f.foreground(t, otherApp)
	assert.Equal(t, domain.NoAction, dec.Action)
	assert.Equal(t, domain.ReasonSurfaceActive, dec.Reason)
}

func TestTargetSwitchDiscardsOldFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, doomApp))
	f.clock.Advance(30 * time.Second)
	f.gate.Tick(ctx)
	require.NoError(t, f.gate.ToggleCause(ctx, testDevice, "boredom"))

	// The user switches to a different monitored app mid-flow; quota is
	// still available, so it gets its own offer, and declining it begins
	// a fresh flow for the new target.
	require.NoError(t, f.gate.SurfaceClosed(ctx, testDevice, ""))
	dec := f.foreground(t, otherApp)
	require.Equal(t, domain.StartQuickTask, dec.Action)
	require.NoError(t, f.gate.DeclineQuickTask(ctx, testDevice, otherApp))

	flow := f.gate.Flow(testDevice)
	assert.Equal(t, otherApp, flow.TargetApp)
	assert.Equal(t, domain.FlowBreathing, flow.State)
	assert.Empty(t, flow.SelectedCauses, "old target's partial state is discarded")
}

func TestSettingsFailOpen(t *testing.T) {
	// No settings stored at all: defaults monitor nothing, so the gate
	// never fires and normal phone use is unaffected.
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 14, 10, 0, 0, time.UTC))
	f := attachGate(t, store, clock)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.NoAction, dec.Action)
	assert.Equal(t, domain.ReasonNotMonitored, dec.Reason)
}

func TestInvalidateSettingsPicksUpChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, benignApp) // caches settings

	set := testDeviceSettings()
	set.MonitoredPackages = append(set.MonitoredPackages, benignApp)
	require.NoError(t, f.store.Settings.Upsert(ctx, set))

	dec := f.foreground(t, benignApp)
	require.Equal(t, domain.ReasonNotMonitored, dec.Reason, "cache still serves the old set")

	f.gate.InvalidateSettings(testDevice)
	dec = f.foreground(t, benignApp)
	assert.Equal(t, domain.StartQuickTask, dec.Action)
}

func TestCancelWithoutFlowIsStillSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.foreground(t, doomApp) // offer on screen, no flow yet
	require.NoError(t, f.gate.CancelFlow(ctx, testDevice, doomApp, "dismissed"))

	entry, err := f.store.Entries.Get(ctx, testDevice, doomApp)
	require.NoError(t, err)
	assert.Equal(t, domain.AppEntry{}, entry)

	dec := f.foreground(t, doomApp)
	assert.Equal(t, domain.ReasonQuitSuppressed, dec.Reason)
}
