// Package quota implements the wall-clock-aligned quick-task allowance.
//
// Refill is lazy: the current window boundary is recomputed whenever the
// state is read, so a process suspended across several boundaries collapses
// to exactly one refill instead of accumulating N.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Store manages per-device quota state on top of a repository.
type Store struct {
	repo  domain.QuotaRepository
	clock clockwork.Clock
}

func NewStore(repo domain.QuotaRepository, clock clockwork.Clock) *Store {
	return &Store{repo: repo, clock: clock}
}

// Current returns the quota state after applying any pending window refill
// or settings change. The returned state always satisfies
// 0 <= Remaining <= Max with WindowStart on the current boundary.
func (s *Store) Current(ctx context.Context, deviceID string, settings domain.DeviceSettings) (domain.QuotaState, error) {
	now := s.clock.Now()
	loc := settings.Location()

	state, err := s.repo.Get(ctx, deviceID)
	switch {
	case errors.Is(err, domain.ErrQuotaNotFound):
		state = domain.QuotaState{
			Max:         settings.MaxQuotaPerWindow,
			Remaining:   settings.MaxQuotaPerWindow,
			Window:      settings.Window,
			WindowStart: WindowStart(now, settings.Window, loc),
		}
		if err := s.repo.Put(ctx, deviceID, state); err != nil {
			return domain.QuotaState{}, fmt.Errorf("failed to initialize quota: %w", err)
		}
		return state, nil
	case err != nil:
		return domain.QuotaState{}, fmt.Errorf("failed to load quota: %w", err)
	}

	changed := false

	// An admin change of max or window length takes effect immediately:
	// re-align and force-refill instead of waiting for a natural crossing.
	if state.Max != settings.MaxQuotaPerWindow || state.Window != settings.Window {
		state.Max = settings.MaxQuotaPerWindow
		state.Window = settings.Window
		state.Remaining = state.Max
		state.WindowStart = WindowStart(now, state.Window, loc)
		changed = true
	} else if boundary := WindowStart(now, state.Window, loc); boundary.After(state.WindowStart) {
		state.Remaining = state.Max
		state.WindowStart = boundary
		changed = true
	}

	if state.Remaining > state.Max {
		state.Remaining = state.Max
		changed = true
	}

	if changed {
		if err := s.repo.Put(ctx, deviceID, state); err != nil {
			return domain.QuotaState{}, fmt.Errorf("failed to persist quota refill: %w", err)
		}
	}
	return state, nil
}

// Grant consumes one unit of the allowance, floored at zero. The refill
// check runs first so a grant immediately after a boundary crossing sees
// the refreshed window.
func (s *Store) Grant(ctx context.Context, deviceID string, settings domain.DeviceSettings) (domain.QuotaState, error) {
	state, err := s.Current(ctx, deviceID, settings)
	if err != nil {
		return domain.QuotaState{}, err
	}
	if state.Remaining == 0 {
		return state, nil
	}
	state.Remaining--
	if err := s.repo.Put(ctx, deviceID, state); err != nil {
		return domain.QuotaState{}, fmt.Errorf("failed to persist quota grant: %w", err)
	}
	return state, nil
}
