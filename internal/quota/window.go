package quota

import (
	"time"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// WindowStart returns the start of the fixed window enclosing now.
// Boundaries are anchored at local midnight: 15m windows start at
// :00/:15/:30/:45, 2h windows on even hours, 24h windows at midnight.
// This is a pure function of (now, window, location).
func WindowStart(now time.Time, window domain.WindowDuration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if window == domain.Window24h {
		return midnight
	}
	step := window.Duration()
	elapsed := local.Sub(midnight)
	return midnight.Add(elapsed - elapsed%step)
}
