package graph

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all graph routes.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/graph")

	entities := g.Group("/entities")
	entities.GET("", h.ListEntities)
	entities.GET("/:id", h.GetEntity)
	entities.DELETE("/:id", h.DeleteEntity)
	entities.GET("/:id/relations", h.ListEntityRelations)
	entities.POST("/:id/relations", h.CreateRelation)
	entities.PATCH("/:id/attributes", h.UpdateAttribute)

	relations := g.Group("/relations")
	relations.GET("", h.ListRelations)
	relations.GET("/:id", h.GetRelation)
	relations.DELETE("/:id", h.DeleteRelation)

	stats := g.Group("/stats")
	stats.GET("/timeseries", h.TimeSeries)
	stats.GET("/distribution", h.Distribution)
}
