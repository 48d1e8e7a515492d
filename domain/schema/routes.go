package schema

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers schema routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/schema")

	g.GET("/types", h.GetTypes)
	g.GET("/relations", h.GetRelations)
	g.GET("/relations/:type", h.GetRelation)
}
