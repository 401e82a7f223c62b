// Package memory provides in-memory implementations of the persistence
// repositories for single-instance mode and tests. Contents live as long
// as the Store value does, which is exactly what process-death tests
// need: a new Gate over the same Store models a recreated process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

type pkgKey struct {
	DeviceID string
	Package  string
}

// Store aggregates one in-memory repository per persisted concern.
type Store struct {
	Quotas       *QuotaRepo
	Suppressions *SuppressionRepo
	Entries      *EntryRepo
	Snapshots    *SnapshotRepo
	Settings     *SettingsRepo
}

func NewStore() *Store {
	return &Store{
		Quotas:       &QuotaRepo{states: make(map[string]domain.QuotaState)},
		Suppressions: &SuppressionRepo{sets: make(map[pkgKey]domain.SuppressionSet)},
		Entries:      &EntryRepo{entries: make(map[pkgKey]domain.AppEntry)},
		Snapshots:    &SnapshotRepo{snapshots: make(map[string]domain.PreservedFlow)},
		Settings:     &SettingsRepo{settings: make(map[string]domain.DeviceSettings)},
	}
}

// QuotaRepo implements domain.QuotaRepository.
type QuotaRepo struct {
	mu     sync.RWMutex
	states map[string]domain.QuotaState
}

func (r *QuotaRepo) Get(_ context.Context, deviceID string) (domain.QuotaState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[deviceID]
	if !ok {
		return domain.QuotaState{}, domain.ErrQuotaNotFound
	}
	return state, nil
}

func (r *QuotaRepo) Put(_ context.Context, deviceID string, state domain.QuotaState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[deviceID] = state
	return nil
}

// SuppressionRepo implements domain.SuppressionRepository.
type SuppressionRepo struct {
	mu   sync.RWMutex
	sets map[pkgKey]domain.SuppressionSet
}

func (r *SuppressionRepo) Get(_ context.Context, deviceID, pkg string) (domain.SuppressionSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sets[pkgKey{deviceID, pkg}], nil
}

func (r *SuppressionRepo) Set(_ context.Context, deviceID, pkg string, kind domain.SuppressionKind, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pkgKey{deviceID, pkg}
	set := r.sets[key]
	switch kind {
	case domain.SuppressionQuit:
		set.QuitUntil = until
	case domain.SuppressionWake:
		set.WakeUntil = until
	case domain.SuppressionIntention:
		set.IntentionUntil = until
	}
	r.sets[key] = set
	return nil
}

func (r *SuppressionRepo) Clear(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind) error {
	return r.Set(ctx, deviceID, pkg, kind, time.Time{})
}

// EntryRepo implements domain.AppEntryRepository.
type EntryRepo struct {
	mu      sync.RWMutex
	entries map[pkgKey]domain.AppEntry
}

func (r *EntryRepo) Get(_ context.Context, deviceID, pkg string) (domain.AppEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[pkgKey{deviceID, pkg}], nil
}

func (r *EntryRepo) Put(_ context.Context, deviceID, pkg string, entry domain.AppEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pkgKey{deviceID, pkg}] = entry
	return nil
}

func (r *EntryRepo) Delete(_ context.Context, deviceID, pkg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, pkgKey{deviceID, pkg})
	return nil
}

// SnapshotRepo implements domain.FlowSnapshotRepository.
type SnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[string]domain.PreservedFlow
}

func (r *SnapshotRepo) Get(_ context.Context, deviceID string) (domain.PreservedFlow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[deviceID]
	if !ok {
		return domain.PreservedFlow{}, domain.ErrNoPreservedFlow
	}
	return snapshot, nil
}

func (r *SnapshotRepo) Put(_ context.Context, deviceID string, snapshot domain.PreservedFlow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[deviceID] = snapshot
	return nil
}

func (r *SnapshotRepo) Delete(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, deviceID)
	return nil
}

// SettingsRepo implements domain.SettingsRepository.
type SettingsRepo struct {
	mu       sync.RWMutex
	settings map[string]domain.DeviceSettings
}

func (r *SettingsRepo) Get(_ context.Context, deviceID string) (domain.DeviceSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.settings[deviceID]
	if !ok {
		return domain.DeviceSettings{}, domain.ErrSettingsNotFound
	}
	return set, nil
}

func (r *SettingsRepo) Upsert(_ context.Context, set domain.DeviceSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[set.DeviceID] = set
	return nil
}
