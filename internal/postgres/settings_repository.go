package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
)

// SettingsRepo implements domain.SettingsRepository on PostgreSQL.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context, deviceID string) (domain.DeviceSettings, error) {
	const query = `
		SELECT device_id, monitored_packages, max_quota, window_ms,
		       breathing_sec, quick_task_sec, intention_default_ms, timezone, updated_at
		FROM device_settings
		WHERE device_id = $1`

	var (
		s        domain.DeviceSettings
		windowMs int64
		intentMs int64
	)
	err := r.pool.QueryRow(ctx, query, deviceID).Scan(
		&s.DeviceID,
		&s.MonitoredPackages,
		&s.MaxQuotaPerWindow,
		&windowMs,
		&s.BreathingDurationSec,
		&s.QuickTaskDurationSec,
		&intentMs,
		&s.Timezone,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeviceSettings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.DeviceSettings{}, fmt.Errorf("failed to get device settings: %w", err)
	}

	s.Window = domain.WindowDuration(time.Duration(windowMs) * time.Millisecond)
	s.IntentionDefault = time.Duration(intentMs) * time.Millisecond
	return s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s domain.DeviceSettings) error {
	const query = `
		INSERT INTO device_settings
			(device_id, monitored_packages, max_quota, window_ms,
			 breathing_sec, quick_task_sec, intention_default_ms, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (device_id) DO UPDATE SET
			monitored_packages = EXCLUDED.monitored_packages,
			max_quota = EXCLUDED.max_quota,
			window_ms = EXCLUDED.window_ms,
			breathing_sec = EXCLUDED.breathing_sec,
			quick_task_sec = EXCLUDED.quick_task_sec,
			intention_default_ms = EXCLUDED.intention_default_ms,
			timezone = EXCLUDED.timezone,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query,
		s.DeviceID,
		s.MonitoredPackages,
		s.MaxQuotaPerWindow,
		time.Duration(s.Window).Milliseconds(),
		s.BreathingDurationSec,
		s.QuickTaskDurationSec,
		s.IntentionDefault.Milliseconds(),
		s.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device settings: %w", err)
	}
	return nil
}
