package appstate

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	"github.com/flyimmer/breakloop-native-sub009/internal/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	return NewRegistry(memory.NewStore().Entries, clock), clock
}

func TestGetMaterializesZeroEntry(t *testing.T) {
	reg, _ := newTestRegistry(t)

	entry, err := reg.Get(context.Background(), "d1", "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, domain.QuickTaskNone, entry.QuickTaskState)
	assert.False(t, entry.InterventionPreserved)
	assert.False(t, entry.HasActiveSession)
}

func TestSetQuickTaskStateStampsStart(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	entry, err := reg.SetQuickTaskState(ctx, "d1", "com.example.app", domain.QuickTaskActive)
	require.NoError(t, err)
	assert.Equal(t, domain.QuickTaskActive, entry.QuickTaskState)
	assert.True(t, entry.QuickTaskStartedAt.Equal(clock.Now()), "ACTIVE anchors the countdown")

	// Other states do not touch the anchor.
	entry, err = reg.SetQuickTaskState(ctx, "d1", "com.example.app", domain.QuickTaskPostChoice)
	require.NoError(t, err)
	assert.Equal(t, domain.QuickTaskPostChoice, entry.QuickTaskState)
	assert.True(t, entry.QuickTaskStartedAt.Equal(clock.Now()))
}

func TestQuickTaskRemaining(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	entry, err := reg.SetQuickTaskState(ctx, "d1", "com.example.app", domain.QuickTaskActive)
	require.NoError(t, err)

	duration := 5 * time.Minute
	assert.Equal(t, duration, entry.QuickTaskRemaining(clock.Now(), duration))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 3*time.Minute, entry.QuickTaskRemaining(clock.Now(), duration))

	clock.Advance(10 * time.Minute)
	assert.Equal(t, time.Duration(0), entry.QuickTaskRemaining(clock.Now(), duration))
}

func TestMarkPreservedRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	entry, err := reg.MarkPreserved(ctx, "d1", "com.example.app", true)
	require.NoError(t, err)
	assert.True(t, entry.InterventionPreserved)

	entry, err = reg.MarkPreserved(ctx, "d1", "com.example.app", false)
	require.NoError(t, err)
	assert.False(t, entry.InterventionPreserved)
}

func TestStampInterventionEmitted(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	entry, err := reg.StampInterventionEmitted(ctx, "d1", "com.example.app")
	require.NoError(t, err)
	assert.True(t, entry.LastInterventionEmittedAt.Equal(clock.Now()))
}

func TestResetDropsEverything(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.SetQuickTaskState(ctx, "d1", "com.example.app", domain.QuickTaskActive)
	require.NoError(t, err)
	_, err = reg.MarkPreserved(ctx, "d1", "com.example.app", true)
	require.NoError(t, err)

	require.NoError(t, reg.Reset(ctx, "d1", "com.example.app"))

	entry, err := reg.Get(ctx, "d1", "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, domain.QuickTaskNone, entry.QuickTaskState)
	assert.False(t, entry.InterventionPreserved)
	assert.True(t, entry.QuickTaskStartedAt.IsZero())
}

func TestEntriesAreScopedPerPackage(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.SetQuickTaskState(ctx, "d1", "com.example.a", domain.QuickTaskActive)
	require.NoError(t, err)

	entry, err := reg.Get(ctx, "d1", "com.example.b")
	require.NoError(t, err)
	assert.Equal(t, domain.QuickTaskNone, entry.QuickTaskState)
}
