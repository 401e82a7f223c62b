package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Signals from the OS collaborator
	s.echo.POST("/api/events/foreground", s.handleForeground)

	// User intents from the presentation layer
	s.echo.POST("/api/intents/quick-task/accept", s.handleAcceptQuickTask)
	s.echo.POST("/api/intents/quick-task/decline", s.handleDeclineQuickTask)
	s.echo.POST("/api/intents/flow/toggle-cause", s.handleToggleCause)
	s.echo.POST("/api/intents/flow/alternatives", s.handleProceedToAlternatives)
	s.echo.POST("/api/intents/flow/back-to-causes", s.handleGoBackToRootCause)
	s.echo.POST("/api/intents/flow/select-alternative", s.handleSelectAlternative)
	s.echo.POST("/api/intents/flow/action", s.handleProceedToAction)
	s.echo.POST("/api/intents/flow/back-from-action", s.handleGoBackFromAction)
	s.echo.POST("/api/intents/flow/start-alternative", s.handleStartAlternative)
	s.echo.POST("/api/intents/flow/finish-action", s.handleFinishAction)
	s.echo.POST("/api/intents/flow/timer", s.handleProceedToTimer)
	s.echo.POST("/api/intents/flow/set-intention", s.handleSetIntentionTimer)
	s.echo.POST("/api/intents/flow/finish-reflection", s.handleFinishReflection)
	s.echo.POST("/api/intents/flow/cancel", s.handleCancelFlow)
	s.echo.POST("/api/intents/surface-closed", s.handleSurfaceClosed)

	// Admin API
	s.echo.GET("/api/devices/:id/settings", s.handleGetSettings)
	s.echo.PUT("/api/devices/:id/settings", s.handlePutSettings)
	s.echo.GET("/api/devices/:id/flow", s.handleGetFlow)

	// Presentation subscription
	s.echo.GET("/ws/surface/:device", s.handleSurfaceSocket)
}
