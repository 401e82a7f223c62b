package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Redis hash field names for quota keys.
const (
	fieldQuotaMax         = "max"
	fieldQuotaRemaining   = "remaining"
	fieldQuotaWindowStart = "window_start_ms"
	fieldQuotaWindow      = "window_ms"
)

// QuotaRepo implements domain.QuotaRepository on a Redis hash per device.
type QuotaRepo struct {
	rdb *goredis.Client
}

func NewQuotaRepo(rdb *goredis.Client) *QuotaRepo {
	return &QuotaRepo{rdb: rdb}
}

func (r *QuotaRepo) Get(ctx context.Context, deviceID string) (domain.QuotaState, error) {
	fields, err := r.rdb.HGetAll(ctx, quotaKey(deviceID)).Result()
	if err != nil {
		return domain.QuotaState{}, fmt.Errorf("failed to read quota state: %w", err)
	}
	if len(fields) == 0 {
		return domain.QuotaState{}, domain.ErrQuotaNotFound
	}

	maxVal, err := parseUint(fields[fieldQuotaMax])
	if err != nil {
		return domain.QuotaState{}, fmt.Errorf("corrupt quota max: %w", err)
	}
	remaining, err := parseUint(fields[fieldQuotaRemaining])
	if err != nil {
		return domain.QuotaState{}, fmt.Errorf("corrupt quota remaining: %w", err)
	}
	startMs, err := parseInt(fields[fieldQuotaWindowStart])
	if err != nil {
		return domain.QuotaState{}, fmt.Errorf("corrupt quota window start: %w", err)
	}
	windowMs, err := parseInt(fields[fieldQuotaWindow])
	if err != nil {
		return domain.QuotaState{}, fmt.Errorf("corrupt quota window: %w", err)
	}

	return domain.QuotaState{
		Max:         maxVal,
		Remaining:   remaining,
		WindowStart: time.UnixMilli(startMs),
		Window:      domain.WindowDuration(time.Duration(windowMs) * time.Millisecond),
	}, nil
}

func (r *QuotaRepo) Put(ctx context.Context, deviceID string, state domain.QuotaState) error {
	err := r.rdb.HSet(ctx, quotaKey(deviceID), map[string]any{
		fieldQuotaMax:         strconv.FormatUint(uint64(state.Max), 10),
		fieldQuotaRemaining:   strconv.FormatUint(uint64(state.Remaining), 10),
		fieldQuotaWindowStart: strconv.FormatInt(state.WindowStart.UnixMilli(), 10),
		fieldQuotaWindow:      strconv.FormatInt(state.Window.Duration().Milliseconds(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write quota state: %w", err)
	}
	return nil
}

func quotaKey(deviceID string) string {
	return "gate:quota:" + deviceID
}

func parseUint(s string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func isNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}
