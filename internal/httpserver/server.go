// Package httpserver exposes the gate over HTTP: device shells post
// foreground signals and user intents, presentation clients subscribe
// to surface pushes over WebSocket, and an admin API manages device
// settings.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/config"
	"github.com/flyimmer/breakloop-native-sub009/internal/domain"
	apperrors "github.com/flyimmer/breakloop-native-sub009/internal/errors"
	"github.com/flyimmer/breakloop-native-sub009/internal/gate"
	"github.com/flyimmer/breakloop-native-sub009/internal/surface"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	gate      *gate.Gate
	hub       *surface.Hub
	settings  domain.SettingsRepository
	redis     *goredis.Client
	pool      *pgxpool.Pool
	startTime time.Time
}

func NewServer(cfg *config.Config, g *gate.Gate, hub *surface.Hub, settings domain.SettingsRepository, redis *goredis.Client, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		gate:      g,
		hub:       hub,
		settings:  settings,
		redis:     redis,
		pool:      pool,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the handler tree for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
