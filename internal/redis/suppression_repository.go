package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Redis hash field names for suppression keys, one per kind.
const (
	fieldQuitUntil      = "quit_until_ms"
	fieldWakeUntil      = "wake_until_ms"
	fieldIntentionUntil = "intention_until_ms"
)

// SuppressionRepo implements domain.SuppressionRepository on a Redis hash
// per (device, package).
type SuppressionRepo struct {
	rdb *goredis.Client
}

func NewSuppressionRepo(rdb *goredis.Client) *SuppressionRepo {
	return &SuppressionRepo{rdb: rdb}
}

func (r *SuppressionRepo) Get(ctx context.Context, deviceID, pkg string) (domain.SuppressionSet, error) {
	fields, err := r.rdb.HGetAll(ctx, suppressionKey(deviceID, pkg)).Result()
	if err != nil {
		return domain.SuppressionSet{}, fmt.Errorf("failed to read suppression set: %w", err)
	}

	var set domain.SuppressionSet
	if set.QuitUntil, err = parseUntil(fields[fieldQuitUntil]); err != nil {
		return domain.SuppressionSet{}, fmt.Errorf("corrupt quit suppression: %w", err)
	}
	if set.WakeUntil, err = parseUntil(fields[fieldWakeUntil]); err != nil {
		return domain.SuppressionSet{}, fmt.Errorf("corrupt wake suppression: %w", err)
	}
	if set.IntentionUntil, err = parseUntil(fields[fieldIntentionUntil]); err != nil {
		return domain.SuppressionSet{}, fmt.Errorf("corrupt intention suppression: %w", err)
	}
	return set, nil
}

func (r *SuppressionRepo) Set(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind, until time.Time) error {
	field, err := suppressionField(kind)
	if err != nil {
		return err
	}
	value := "0"
	if !until.IsZero() {
		value = strconv.FormatInt(until.UnixMilli(), 10)
	}
	if err := r.rdb.HSet(ctx, suppressionKey(deviceID, pkg), field, value).Err(); err != nil {
		return fmt.Errorf("failed to write %s suppression: %w", kind, err)
	}
	return nil
}

func (r *SuppressionRepo) Clear(ctx context.Context, deviceID, pkg string, kind domain.SuppressionKind) error {
	field, err := suppressionField(kind)
	if err != nil {
		return err
	}
	if err := r.rdb.HDel(ctx, suppressionKey(deviceID, pkg), field).Err(); err != nil {
		return fmt.Errorf("failed to clear %s suppression: %w", kind, err)
	}
	return nil
}

func suppressionField(kind domain.SuppressionKind) (string, error) {
	switch kind {
	case domain.SuppressionQuit:
		return fieldQuitUntil, nil
	case domain.SuppressionWake:
		return fieldWakeUntil, nil
	case domain.SuppressionIntention:
		return fieldIntentionUntil, nil
	}
	return "", fmt.Errorf("unknown suppression kind %q", kind)
}

func parseUntil(s string) (time.Time, error) {
	ms, err := parseInt(s)
	if err != nil {
		return time.Time{}, err
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func suppressionKey(deviceID, pkg string) string {
	return "gate:sup:" + deviceID + ":" + pkg
}
