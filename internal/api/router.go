package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/penflowhq/penflow/internal/app"
	"github.com/penflowhq/penflow/internal/collab"
	"github.com/penflowhq/penflow/internal/handlers"
	"github.com/penflowhq/penflow/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(cfg *app.Config, hub *collab.Hub, registry *collab.Registry) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("collab hub must be provided")
	}
	if registry == nil {
		return nil, fmt.Errorf("session registry must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSWithOrigins(cfg.Server.AllowedOrigins))

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Websocket entry point; auth happens on the socket itself so failed
	// connects can carry protocol-level close codes.
	collabHandler := handlers.NewCollabHandler(hub)
	r.GET("/ws/documents/:docId", collabHandler.Connect)

	documentHandler := handlers.NewDocumentHandler(registry)
	api := r.Group("/api")
	{
		api.GET("/documents", documentHandler.Active)
		api.GET("/documents/:id/live", documentHandler.Live)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
