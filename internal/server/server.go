package server

import (
	"rwa-shop-backend/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	webhookHandler *handler.WebhookHandler
	debugHandler   *handler.DebugHandler
}

func NewServer(webhookHandler *handler.WebhookHandler, debugHandler *handler.DebugHandler) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		webhookHandler: webhookHandler,
		debugHandler:   debugHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- provider webhooks --------
	webhooks := s.echo.Group("/webhooks")
	webhooks.POST("/stripe", s.webhookHandler.StripeWebhook)

	// -------- operator debug --------
	debug := s.echo.Group("/debug")
	debug.GET("/queue", s.debugHandler.QueueStats)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
