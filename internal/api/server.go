// Package api assembles the gin engine shared by both dashboards: middleware,
// health and metrics endpoints, static assets and the page modules.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/pkg/config"
	"github.com/hephaex/Barami/pkg/logger"
	"github.com/hephaex/Barami/pkg/metrics"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

// Module registers a group of routes on the engine.
type Module interface {
	Register(r *gin.Engine)
}

// HealthCheck probes one dependency. A failing critical check makes the
// service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type Server struct {
	config  *config.Config
	metrics *metrics.Metrics
	checks  []HealthCheck
	router  *gin.Engine
}

func NewServer(cfg *config.Config, m *metrics.Metrics, checks []HealthCheck, modules ...Module) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		metrics: m,
		checks:  checks,
		router:  gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	for _, mod := range modules {
		mod.Register(s.router)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.metricsMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.timeoutMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.StaticFS("/static", http.FS(view.StaticFS()))
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"app":     string(s.config.App),
		"time":    time.Now().Format(time.RFC3339),
		"version": version,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	code := http.StatusOK
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			health[check.Name] = "disconnected"
			logger.Warn("Health check failed", logger.String("dependency", check.Name), logger.Err(err))
			if check.Critical {
				health["status"] = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if health["status"] == "healthy" {
				health["status"] = "degraded"
			}
			continue
		}
		health[check.Name] = "connected"
	}

	c.JSON(code, health)
}
