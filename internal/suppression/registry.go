// Package suppression tracks the per-package "do not trigger before T"
// timers: quit, wake, and intention windows.
package suppression

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Registry manages suppression windows on top of a repository. Windows are
// never counted down; expiry is derived from the stored timestamp on read.
type Registry struct {
	repo  domain.SuppressionRepository
	clock clockwork.Clock
}

func NewRegistry(repo domain.SuppressionRepository, clock clockwork.Clock) *Registry {
	return &Registry{repo: repo, clock: clock}
}

// Snapshot returns the suppression set for a package.
func (r *Registry) Snapshot(ctx context.Context, deviceID, pkg string) (domain.SuppressionSet, error) {
	set, err := r.repo.Get(ctx, deviceID, pkg)
	if err != nil {
		return domain.SuppressionSet{}, fmt.Errorf("failed to load suppression set: %w", err)
	}
	return set, nil
}

// Suppress activates the given kind for the given duration from now.
// A non-positive duration clears the window instead.
func (r *Registry) Suppress(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind, d time.Duration) error {
	if d <= 0 {
		return r.Clear(ctx, deviceID, pkg, kind)
	}
	until := r.clock.Now().Add(d)
	if err := r.repo.Set(ctx, deviceID, pkg, kind, until); err != nil {
		return fmt.Errorf("failed to set %s suppression: %w", kind, err)
	}
	return nil
}

// Clear cancels the given kind explicitly.
func (r *Registry) Clear(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind) error {
	if err := r.repo.Clear(ctx, deviceID, pkg, kind); err != nil {
		return fmt.Errorf("failed to clear %s suppression: %w", kind, err)
	}
	return nil
}

// Remaining returns how long the given kind stays active, clamped at zero.
func (r *Registry) Remaining(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind) (time.Duration, error) {
	set, err := r.Snapshot(ctx, deviceID, pkg)
	if err != nil {
		return 0, err
	}
	return set.Remaining(kind, r.clock.Now()), nil
}
