// Package routes registers the HTTP routes of the permission API.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/dealroom/api/internal/infra/http"
	"github.com/dealroom/api/internal/infra/http/handler"
	"github.com/dealroom/api/internal/infra/websocket"
)

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds the HTTP handlers for route registration.
type Handlers struct {
	Health     *handler.HealthHandler
	Catalog    *handler.CatalogHandler
	Permission *handler.PermissionHandler
	// Stream is nil when the change stream is disabled.
	Stream *websocket.Handler
}

// Register registers all application routes.
func Register(router Router, h Handlers) {
	registerHealthRoutes(router, h.Health)

	router.Group("/api/v1", func(r Router) {
		registerCatalogRoutes(r, h.Catalog)
		registerParticipantRoutes(r, h.Permission)
		if h.Stream != nil {
			r.GET("/ws", h.Stream.ServeWS)
		}
	})
}

func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)
}

// registerCatalogRoutes exposes the read-only permission tables.
func registerCatalogRoutes(router Router, h *handler.CatalogHandler) {
	router.Group("/permissions", func(r Router) {
		r.GET("/catalog", h.Catalog)
		r.GET("/presets", h.ListPresets)
		r.GET("/presets/{name}", h.GetPreset)
	})
}

func registerParticipantRoutes(router Router, h *handler.PermissionHandler) {
	router.GET("/deals/{dealId}/participants", h.ListDealParticipants)
	router.POST("/participants", h.Create)

	router.Group("/participants/{participantId}/permissions", func(r Router) {
		r.GET("/", h.Get)
		r.DELETE("/", h.Remove)
		r.GET("/effective", h.Effective)
		r.GET("/audit", h.AuditLog)

		r.PUT("/preset", h.ApplyPreset)
		r.POST("/toggle", h.Toggle)
		r.PUT("/visibility", h.SetVisibility)
		r.POST("/enable-all", h.EnableAll)
		r.POST("/disable-all", h.DisableAll)

		r.PUT("/overrides", h.ReplaceOverrides)
		r.POST("/overrides", h.AddOverride)
		r.DELETE("/overrides", h.ClearOverrides)
	})
}
