package httpserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"
)

type settingsPayload struct {
	DeviceID             string   `json:"device_id"`
	MonitoredPackages    []string `json:"monitored_packages"`
	MaxQuotaPerWindow    uint     `json:"max_quota_per_window"`
	WindowSec            uint     `json:"window_sec"`
	BreathingDurationSec uint     `json:"breathing_duration_sec"`
	QuickTaskDurationSec uint     `json:"quick_task_duration_sec"`
	IntentionDefaultSec  uint     `json:"intention_default_sec"`
	Timezone             string   `json:"timezone"`
	UpdatedAt            string   `json:"updated_at,omitempty"`
}

func toPayload(s domain.DeviceSettings) settingsPayload {
	p := settingsPayload{
		DeviceID:             s.DeviceID,
		MonitoredPackages:    s.MonitoredPackages,
		MaxQuotaPerWindow:    s.MaxQuotaPerWindow,
		WindowSec:            uint(s.Window.Duration() / time.Second),
		BreathingDurationSec: s.BreathingDurationSec,
		QuickTaskDurationSec: s.QuickTaskDurationSec,
		IntentionDefaultSec:  uint(s.IntentionDefault / time.Second),
		Timezone:             s.Timezone,
	}
	if !s.UpdatedAt.IsZero() {
		p.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return p
}

func (s *Server) handleGetSettings(c echo.Context) error {
	deviceID := c.Param("id")

	set, err := s.settings.Get(c.Request().Context(), deviceID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return apperrors.NotFoundError("device has no stored settings").WithField("device_id", deviceID)
	}
	if err != nil {
		return apperrors.StorageError("failed to load device settings", err).WithField("device_id", deviceID)
	}

	if err := c.JSON(200, toPayload(set)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePutSettings(c echo.Context) error {
	deviceID := c.Param("id")

	var p settingsPayload
	if err := c.Bind(&p); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	window := domain.WindowDuration(time.Duration(p.WindowSec) * time.Second)
	if !window.Valid() {
		return apperrors.ValidationError("window_sec must be one of the supported window lengths").
			WithField("window_sec", p.WindowSec)
	}
	if p.MaxQuotaPerWindow == 0 {
		return apperrors.ValidationError("max_quota_per_window must be at least 1")
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return apperrors.ValidationError("unknown timezone").WithField("timezone", p.Timezone)
		}
	}

	set := domain.DeviceSettings{
		DeviceID:             deviceID,
		MonitoredPackages:    p.MonitoredPackages,
		MaxQuotaPerWindow:    p.MaxQuotaPerWindow,
		Window:               window,
		BreathingDurationSec: p.BreathingDurationSec,
		QuickTaskDurationSec: p.QuickTaskDurationSec,
		IntentionDefault:     time.Duration(p.IntentionDefaultSec) * time.Second,
		Timezone:             p.Timezone,
	}
	if set.BreathingDurationSec == 0 {
		set.BreathingDurationSec = domain.DefaultBreathingDurationSec
	}
	if set.QuickTaskDurationSec == 0 {
		set.QuickTaskDurationSec = domain.DefaultQuickTaskDurationSec
	}
	if set.IntentionDefault == 0 {
		set.IntentionDefault = domain.DefaultIntentionDuration
	}

	if err := s.settings.Upsert(c.Request().Context(), set); err != nil {
		return apperrors.StorageError("failed to save device settings", err).WithField("device_id", deviceID)
	}
	s.gate.InvalidateSettings(deviceID)

	if err := c.JSON(200, toPayload(set)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type flowResponse struct {
	State              string   `json:"state"`
	TargetApp          string   `json:"target_app,omitempty"`
	BreathingRemaining uint     `json:"breathing_remaining_sec"`
	ActionRemaining    uint     `json:"action_remaining_sec"`
	Causes             []string `json:"causes,omitempty"`
	SelectedID         string   `json:"selected_alternative,omitempty"`
}

// handleGetFlow lets a reconnecting presentation client recover the
// current flow position instead of waiting for the next push.
func (s *Server) handleGetFlow(c echo.Context) error {
	deviceID := c.Param("id")

	f := s.gate.Flow(deviceID)
	now := s.gate.Now()
	resp := flowResponse{
		State:              string(f.State),
		TargetApp:          f.TargetApp,
		BreathingRemaining: f.BreathingRemaining(now),
		ActionRemaining:    f.ActionRemaining(now),
		Causes:             f.SelectedCauses,
		SelectedID:         f.SelectedAlternative,
	}

	if err := c.JSON(200, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
