package graph

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
)

// Handler handles HTTP requests for graph operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetEntity returns one entity record.
// GET /api/graph/entities/:id
func (h *Handler) GetEntity(c echo.Context) error {
	bypass, err := queryBool(c, "bypass_cache")
	if err != nil {
		return err
	}
	rec, err := h.svc.GetEntity(c.Request().Context(), c.Param("id"), bypass)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// ListEntities pages entities of ?type=.
// GET /api/graph/entities
func (h *Handler) ListEntities(c echo.Context) error {
	typ, err := entityType(c)
	if err != nil {
		return err
	}
	opts, err := pageOptionsFrom(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListEntities(c.Request().Context(), typ, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// ListEntityRelations returns the relations an entity plays in.
// GET /api/graph/entities/:id/relations
func (h *Handler) ListEntityRelations(c echo.Context) error {
	relType := c.QueryParam("relation_type")
	infer, err := queryOptionalBool(c, "infer")
	if err != nil {
		return err
	}
	rels, err := h.svc.ListEntityRelations(c.Request().Context(), c.Param("id"), relType, infer)
	if err != nil {
		return err
	}
	if rels == nil {
		rels = []Relation{}
	}
	return c.JSON(http.StatusOK, RelationsResponse{Relations: rels})
}

// ListRelations pages relations.
// GET /api/graph/relations
func (h *Handler) ListRelations(c echo.Context) error {
	f, err := relationFilterFrom(c)
	if err != nil {
		return err
	}
	opts, err := pageOptionsFrom(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListRelations(c.Request().Context(), f, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// GetRelation returns a relation by engine id or inference token.
// GET /api/graph/relations/:id
func (h *Handler) GetRelation(c echo.Context) error {
	rel, err := h.svc.GetRelation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rel)
}

// CreateRelation creates a relation from an entity.
// POST /api/graph/entities/:id/relations
func (h *Handler) CreateRelation(c echo.Context) error {
	var req CreateRelationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	in, err := req.ToInput()
	if err != nil {
		return err
	}
	out, err := h.svc.CreateRelation(c.Request().Context(), actorFrom(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

// UpdateAttribute replaces one attribute of an entity.
// PATCH /api/graph/entities/:id/attributes
func (h *Handler) UpdateAttribute(c echo.Context) error {
	var req UpdateAttributeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	in, err := req.ToInput()
	if err != nil {
		return err
	}
	rec, err := h.svc.UpdateAttribute(c.Request().Context(), actorFrom(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// DeleteEntity deletes an entity.
// DELETE /api/graph/entities/:id
func (h *Handler) DeleteEntity(c echo.Context) error {
	cascade, err := queryBool(c, "cascade")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntity(c.Request().Context(), actorFrom(c), c.Param("id"), cascade); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteRelation deletes a relation.
// DELETE /api/graph/relations/:id
func (h *Handler) DeleteRelation(c echo.Context) error {
	if err := h.svc.DeleteRelation(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// TimeSeries aggregates entities of ?type= over time.
// GET /api/graph/stats/timeseries
func (h *Handler) TimeSeries(c echo.Context) error {
	typ, err := entityType(c)
	if err != nil {
		return err
	}
	op, err := aggregateMethod(c)
	if err != nil {
		return err
	}
	interval, err := ParseInterval(c.QueryParam("interval"))
	if err != nil {
		return err
	}
	start, err := queryDate(c, "start_date")
	if err != nil {
		return err
	}
	end, err := queryDate(c, "end_date")
	if err != nil {
		return err
	}
	if start == nil || end == nil {
		return apperror.NewBadRequest("start_date and end_date are required")
	}
	infer, err := queryOptionalBool(c, "infer")
	if err != nil {
		return err
	}

	points, err := h.svc.TimeSeries(c.Request().Context(), typ, TimeSeriesOptions{
		StartDate:  *start,
		EndDate:    *end,
		Operation:  op,
		Field:      c.QueryParam("field"),
		Interval:   interval,
		ValueField: c.QueryParam("value_field"),
		Infer:      infer,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TimeSeriesResponse{Points: points})
}

// Distribution aggregates entities of ?type= by attribute value.
// GET /api/graph/stats/distribution
func (h *Handler) Distribution(c echo.Context) error {
	typ, err := entityType(c)
	if err != nil {
		return err
	}
	op, err := aggregateMethod(c)
	if err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return apperror.NewBadRequest("invalid limit")
		}
	}
	infer, err := queryOptionalBool(c, "infer")
	if err != nil {
		return err
	}

	buckets, err := h.svc.Distribution(c.Request().Context(), typ, DistributionOptions{
		Operation:  op,
		Field:      c.QueryParam("field"),
		ValueField: c.QueryParam("value_field"),
		Limit:      limit,
		Infer:      infer,
	})
	if err != nil {
		return err
	}
	if buckets == nil {
		buckets = []Bucket{}
	}
	return c.JSON(http.StatusOK, DistributionResponse{Buckets: buckets})
}
