package api

import (
	"github.com/gin-gonic/gin"
	"github.com/leozw/stream-meter/internal/api/handlers"
	"github.com/leozw/stream-meter/internal/api/middleware"
	"github.com/leozw/stream-meter/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	handler *handlers.Handler
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, handler *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		handler: handler,
		logger:  logger,
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)

	api := s.Router.Group("/api/v1")
	{
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.GET("/streams/:id/series", h.Series)
		api.GET("/measurements", h.ListMeasurements)
		api.GET("/youtube/lookup", h.LookupVideo)
	}

	// Mutations require a token once a secret is configured.
	write := api.Group("")
	if s.Config.Server.JWTSecret != "" {
		write.Use(middleware.EditorRequired(s.Config.Server.JWTSecret))
	} else {
		s.logger.Warn("JWT secret not set, write routes are unauthenticated")
	}
	{
		write.POST("/streams", h.CreateStream)
		write.PUT("/streams/:id/config", h.UpdateConfig)
		write.DELETE("/streams/:id", h.DeleteStream)
		write.POST("/streams/:id/toggle", h.ToggleActive)
	}
}
