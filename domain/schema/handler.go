package schema

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
)

// Handler serves the loaded schema descriptors
type Handler struct {
	reg *Registry
}

// NewHandler creates a new schema handler
func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// TypesResponse lists type descriptors and list-valued attributes
type TypesResponse struct {
	Types                []Descriptor `json:"types"`
	MultipleAttributes   []string     `json:"multipleAttributes"`
	StatisticsDateFields []string     `json:"statisticsDateFields"`
}

// GetTypes handles GET /api/schema/types
func (h *Handler) GetTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, TypesResponse{
		Types:                h.reg.Types(),
		MultipleAttributes:   sortedKeys(h.reg.multi),
		StatisticsDateFields: sortedKeys(h.reg.statDates),
	})
}

// GetRelations handles GET /api/schema/relations
func (h *Handler) GetRelations(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reg.Relations())
}

// GetRelation handles GET /api/schema/relations/:type
func (h *Handler) GetRelation(c echo.Context) error {
	relType := c.Param("type")
	def, ok := h.reg.Relation(relType)
	if !ok {
		return apperror.NewNotFound("relation type", relType)
	}
	return c.JSON(http.StatusOK, def)
}
