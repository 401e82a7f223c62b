package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// Redis hash field names for app entry keys. HasActiveSession is
// deliberately not persisted: a dead process has no sessions.
const (
	fieldEntryState       = "quick_task_state"
	fieldEntryPreserved   = "preserved"
	fieldEntryLastEmitted = "last_emitted_ms"
	fieldEntryQTStarted   = "qt_started_ms"
)

// EntryRepo implements domain.AppEntryRepository on a Redis hash per
// (device, package).
type EntryRepo struct {
	rdb *goredis.Client
}

func NewEntryRepo(rdb *goredis.Client) *EntryRepo {
	return &EntryRepo{rdb: rdb}
}

func (r *EntryRepo) Get(ctx context.Context, deviceID, pkg string) (domain.AppEntry, error) {
	fields, err := r.rdb.HGetAll(ctx, entryKey(deviceID, pkg)).Result()
	if err != nil {
		return domain.AppEntry{}, fmt.Errorf("failed to read app entry: %w", err)
	}
	if len(fields) == 0 {
		// Lazily materialized: never-seen packages read as the zero entry.
		return domain.AppEntry{}, nil
	}

	entry := domain.AppEntry{
		QuickTaskState:        domain.QuickTaskState(fields[fieldEntryState]),
		InterventionPreserved: fields[fieldEntryPreserved] == "1",
	}
	lastMs, err := parseInt(fields[fieldEntryLastEmitted])
	if err != nil {
		return domain.AppEntry{}, fmt.Errorf("corrupt emission stamp: %w", err)
	}
	if lastMs != 0 {
		entry.LastInterventionEmittedAt = time.UnixMilli(lastMs)
	}
	startedMs, err := parseInt(fields[fieldEntryQTStarted])
	if err != nil {
		return domain.AppEntry{}, fmt.Errorf("corrupt quick-task stamp: %w", err)
	}
	if startedMs != 0 {
		entry.QuickTaskStartedAt = time.UnixMilli(startedMs)
	}
	return entry, nil
}

func (r *EntryRepo) Put(ctx context.Context, deviceID, pkg string, entry domain.AppEntry) error {
	preserved := "0"
	if entry.InterventionPreserved {
		preserved = "1"
	}
	err := r.rdb.HSet(ctx, entryKey(deviceID, pkg), map[string]any{
		fieldEntryState:       string(entry.QuickTaskState),
		fieldEntryPreserved:   preserved,
		fieldEntryLastEmitted: strconv.FormatInt(unixMilliOrZero(entry.LastInterventionEmittedAt), 10),
		fieldEntryQTStarted:   strconv.FormatInt(unixMilliOrZero(entry.QuickTaskStartedAt), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write app entry: %w", err)
	}
	return nil
}

func (r *EntryRepo) Delete(ctx context.Context, deviceID, pkg string) error {
	if err := r.rdb.Del(ctx, entryKey(deviceID, pkg)).Err(); err != nil {
		return fmt.Errorf("failed to delete app entry: %w", err)
	}
	return nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func entryKey(deviceID, pkg string) string {
	return "gate:app:" + deviceID + ":" + pkg
}
