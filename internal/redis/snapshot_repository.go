package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// SnapshotRepo implements domain.FlowSnapshotRepository as a JSON value
// per device. This is the sole recovery artifact across process death.
type SnapshotRepo struct {
	rdb *goredis.Client
}

func NewSnapshotRepo(rdb *goredis.Client) *SnapshotRepo {
	return &SnapshotRepo{rdb: rdb}
}

func (r *SnapshotRepo) Get(ctx context.Context, deviceID string) (domain.PreservedFlow, error) {
	raw, err := r.rdb.Get(ctx, snapshotKey(deviceID)).Result()
	if isNil(err) {
		return domain.PreservedFlow{}, domain.ErrNoPreservedFlow
	}
	if err != nil {
		return domain.PreservedFlow{}, fmt.Errorf("failed to read flow snapshot: %w", err)
	}

	var snapshot domain.PreservedFlow
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return domain.PreservedFlow{}, fmt.Errorf("corrupt flow snapshot: %w", err)
	}
	return snapshot, nil
}

func (r *SnapshotRepo) Put(ctx context.Context, deviceID string, snapshot domain.PreservedFlow) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal flow snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, snapshotKey(deviceID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write flow snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, deviceID string) error {
	if err := r.rdb.Del(ctx, snapshotKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete flow snapshot: %w", err)
	}
	return nil
}

func snapshotKey(deviceID string) string {
	return "gate:flow:" + deviceID
}
