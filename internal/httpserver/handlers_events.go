package httpserver

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"
)

type foregroundRequest struct {
	DeviceID    string    `json:"device_id"`
	PackageName string    `json:"package_name"`
	Timestamp   time.Time `json:"timestamp"`
	ForceEntry  bool      `json:"force_entry"`
}

type decisionResponse struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (s *Server) handleForeground(c echo.Context) error {
	var req foregroundRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.DeviceID == "" {
		return apperrors.ValidationError("device_id is required")
	}
	if req.PackageName == "" {
		return apperrors.ValidationError("package_name is required")
	}

	dec, err := s.gate.HandleForeground(c.Request().Context(), domain.ForegroundEvent{
		DeviceID:    req.DeviceID,
		PackageName: req.PackageName,
		Timestamp:   req.Timestamp,
		ForceEntry:  req.ForceEntry,
	})
	if err != nil {
		return apperrors.InternalError("failed to arbitrate foreground signal", err).
			WithField("device_id", req.DeviceID).
			WithField("package", req.PackageName)
	}

	resp := decisionResponse{Action: string(dec.Action), Reason: string(dec.Reason)}
	if err := c.JSON(200, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
