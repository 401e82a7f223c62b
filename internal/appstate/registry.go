// Package appstate keeps the per-package status records consulted and
// mutated by arbitration.
package appstate

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Registry manages app entries on top of a repository. Entries materialize
// lazily: reading a package that was never seen yields the zero entry
// rather than an error.
type Registry struct {
	repo  domain.AppEntryRepository
	clock clockwork.Clock
}

func NewRegistry(repo domain.AppEntryRepository, clock clockwork.Clock) *Registry {
	return &Registry{repo: repo, clock: clock}
}

// Get returns the entry for a package, normalized to a usable state.
func (r *Registry) Get(ctx context.Context, deviceID, pkg string) (domain.AppEntry, error) {
	entry, err := r.repo.Get(ctx, deviceID, pkg)
	if err != nil {
		return domain.AppEntry{}, fmt.Errorf("failed to load app entry: %w", err)
	}
	return entry.Normalized(), nil
}

// Update applies fn to the current entry and persists the result.
func (r *Registry) Update(ctx context.Context, deviceID, pkg string, fn func(domain.AppEntry) domain.AppEntry) (domain.AppEntry, error) {
	entry, err := r.Get(ctx, deviceID, pkg)
	if err != nil {
		return domain.AppEntry{}, err
	}
	entry = fn(entry).Normalized()
	if err := r.repo.Put(ctx, deviceID, pkg, entry); err != nil {
		return domain.AppEntry{}, fmt.Errorf("failed to persist app entry: %w", err)
	}
	return entry, nil
}

// SetQuickTaskState moves the package to the given flow status.
func (r *Registry) SetQuickTaskState(ctx context.Context, deviceID, pkg string, state domain.QuickTaskState) (domain.AppEntry, error) {
	return r.Update(ctx, deviceID, pkg, func(e domain.AppEntry) domain.AppEntry {
		e.QuickTaskState = state
		if state == domain.QuickTaskActive {
			e.QuickTaskStartedAt = r.clock.Now()
		}
		return e
	})
}

// MarkPreserved flags the entry as holding a preserved intervention.
func (r *Registry) MarkPreserved(ctx context.Context, deviceID, pkg string, preserved bool) (domain.AppEntry, error) {
	return r.Update(ctx, deviceID, pkg, func(e domain.AppEntry) domain.AppEntry {
		e.InterventionPreserved = preserved
		return e
	})
}

// StampInterventionEmitted records when a start/resume intervention was
// last emitted for the package, feeding the resume debounce.
func (r *Registry) StampInterventionEmitted(ctx context.Context, deviceID, pkg string) (domain.AppEntry, error) {
	return r.Update(ctx, deviceID, pkg, func(e domain.AppEntry) domain.AppEntry {
		e.LastInterventionEmittedAt = r.clock.Now()
		return e
	})
}

// Reset returns the package to the nothing-in-progress state.
func (r *Registry) Reset(ctx context.Context, deviceID, pkg string) error {
	if err := r.repo.Delete(ctx, deviceID, pkg); err != nil {
		return fmt.Errorf("failed to reset app entry: %w", err)
	}
	return nil
}
