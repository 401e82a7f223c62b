package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // presentation clients connect from app webviews
	},
}

func (s *Server) handleSurfaceSocket(c echo.Context) error {
	deviceID := c.Param("device")
	if deviceID == "" {
		return apperrors.ValidationError("device is required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := s.hub.Register(deviceID, conn); err != nil {
		slog.Warn("Failed to register surface client", "device_id", deviceID, "error", err)
		return nil
	}

	// Read pump blocks until the connection closes. Inbound frames are
	// ignored; intents arrive over the HTTP API.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(deviceID, conn)
	return nil
}
