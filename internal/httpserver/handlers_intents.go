package httpserver

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"
)

type intentRequest struct {
	DeviceID    string `json:"device_id"`
	PackageName string `json:"package_name"`

	// Optional fields used by individual intents.
	Cause         string `json:"cause"`
	AlternativeID string `json:"alternative_id"`
	DurationSec   uint   `json:"duration_sec"`
	Reason        string `json:"reason"`
}

func bindIntent(c echo.Context) (intentRequest, error) {
	var req intentRequest
	if err := c.Bind(&req); err != nil {
		return intentRequest{}, apperrors.ValidationError("invalid request body")
	}
	if req.DeviceID == "" {
		return intentRequest{}, apperrors.ValidationError("device_id is required")
	}
	return req, nil
}

func ok(c echo.Context) error {
	if err := c.JSON(200, map[string]string{"status": "ok"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAcceptQuickTask(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if req.PackageName == "" {
		return apperrors.ValidationError("package_name is required")
	}
	if err := s.gate.AcceptQuickTask(c.Request().Context(), req.DeviceID, req.PackageName); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleDeclineQuickTask(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if req.PackageName == "" {
		return apperrors.ValidationError("package_name is required")
	}
	if err := s.gate.DeclineQuickTask(c.Request().Context(), req.DeviceID, req.PackageName); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleToggleCause(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if req.Cause == "" {
		return apperrors.ValidationError("cause is required")
	}
	if err := s.gate.ToggleCause(c.Request().Context(), req.DeviceID, req.Cause); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleProceedToAlternatives(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.ProceedToAlternatives(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleGoBackToRootCause(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.GoBackToRootCause(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleSelectAlternative(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if req.AlternativeID == "" {
		return apperrors.ValidationError("alternative_id is required")
	}
	if err := s.gate.SelectAlternative(c.Request().Context(), req.DeviceID, req.AlternativeID, req.DurationSec); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleProceedToAction(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.ProceedToAction(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleGoBackFromAction(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.GoBackFromAction(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleStartAlternative(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.StartAlternative(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleFinishAction(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.FinishAction(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleProceedToTimer(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.ProceedToTimer(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleSetIntentionTimer(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	target, err := s.gate.SetIntentionTimer(c.Request().Context(), req.DeviceID, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		return err
	}
	if err := c.JSON(200, map[string]string{"status": "ok", "target_app": target}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleFinishReflection(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.FinishReflection(c.Request().Context(), req.DeviceID); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleCancelFlow(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.CancelFlow(c.Request().Context(), req.DeviceID, req.PackageName, req.Reason); err != nil {
		return err
	}
	return ok(c)
}

func (s *Server) handleSurfaceClosed(c echo.Context) error {
	req, err := bindIntent(c)
	if err != nil {
		return err
	}
	if err := s.gate.SurfaceClosed(c.Request().Context(), req.DeviceID, req.PackageName); err != nil {
		return err
	}
	return ok(c)
}
