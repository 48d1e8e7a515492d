package graph

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.graphcore/domain/events"
	"github.com/emergent-company/emergent.graphcore/internal/server"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// CreateRelationRequest is the body of POST /api/graph/entities/:id/relations.
type CreateRelationRequest struct {
	ToID      string  `json:"toId"`
	Type      string  `json:"through"`
	FromRole  string  `json:"fromRole,omitempty"`
	ToRole    string  `json:"toRole,omitempty"`
	StixID    string  `json:"stix_id_key,omitempty"`
	FirstSeen *string `json:"first_seen,omitempty"`
	LastSeen  *string `json:"last_seen,omitempty"`
	Weight    any     `json:"weight,omitempty"`
}

// ToInput validates the request.
func (r CreateRelationRequest) ToInput() (RelationInput, error) {
	if r.ToID == "" || r.Type == "" {
		return RelationInput{}, apperror.ErrValidation.WithMessage("toId and through are required")
	}
	in := RelationInput{
		ToID:     r.ToID,
		Type:     r.Type,
		FromRole: r.FromRole,
		ToRole:   r.ToRole,
		StixID:   r.StixID,
	}
	for _, d := range []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"first_seen", r.FirstSeen, &in.FirstSeen},
		{"last_seen", r.LastSeen, &in.LastSeen},
	} {
		if d.raw == nil {
			continue
		}
		t, err := coerceToDate(*d.raw)
		if err != nil {
			return RelationInput{}, apperror.ErrValidation.WithMessage(fmt.Sprintf("%s: %v", d.name, err))
		}
		*d.dst = &t
	}
	if r.Weight != nil {
		f, err := coerceToNumber(r.Weight)
		if err != nil {
			return RelationInput{}, apperror.ErrValidation.WithMessage(fmt.Sprintf("weight: %v", err))
		}
		w := int64(f)
		in.Weight = &w
	}
	return in, nil
}

// UpdateAttributeRequest is the body of PATCH /api/graph/entities/:id/attributes.
// Value is a scalar or a list of scalars.
type UpdateAttributeRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ToInput validates the request.
func (r UpdateAttributeRequest) ToInput() (AttributeInput, error) {
	if r.Key == "" {
		return AttributeInput{}, apperror.ErrValidation.WithMessage("key is required")
	}
	values, err := coerceValues(r.Value)
	if err != nil {
		return AttributeInput{}, apperror.ErrValidation.WithMessage(err.Error())
	}
	return AttributeInput{Key: r.Key, Value: values}, nil
}

// RelationsResponse wraps a relation list.
type RelationsResponse struct {
	Relations []Relation `json:"relations"`
}

// TimeSeriesResponse wraps a time series.
type TimeSeriesResponse struct {
	Points []Point `json:"points"`
}

// DistributionResponse wraps a distribution.
type DistributionResponse struct {
	Buckets []Bucket `json:"buckets"`
}

func actorFrom(c echo.Context) *events.ActorContext {
	if id := c.Request().Header.Get(server.ActorHeader); id != "" {
		return &events.ActorContext{ActorType: events.ActorUser, ActorID: id}
	}
	return &events.ActorContext{ActorType: events.ActorSystem}
}

func queryBool(c echo.Context, name string) (bool, error) {
	v, err := coerceToBoolean(c.QueryParam(name))
	if err != nil {
		return false, apperror.NewBadRequest(fmt.Sprintf("invalid %s", name))
	}
	return v, nil
}

func queryOptionalBool(c echo.Context, name string) (*bool, error) {
	if c.QueryParam(name) == "" {
		return nil, nil
	}
	v, err := queryBool(c, name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryDate(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := coerceToDate(raw)
	if err != nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid %s", name))
	}
	return &t, nil
}

func pageOptionsFrom(c echo.Context) (PageOptions, error) {
	opts := PageOptions{
		After:   c.QueryParam("after"),
		OrderBy: c.QueryParam("order_by"),
	}
	if raw := c.QueryParam("first"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return PageOptions{}, apperror.NewBadRequest("invalid first")
		}
		opts.First = &n
	}
	mode, err := typeql.ParseOrder(c.QueryParam("order_mode"))
	if err != nil {
		return PageOptions{}, apperror.NewBadRequest("invalid order_mode")
	}
	opts.OrderMode = mode
	if opts.Infer, err = queryOptionalBool(c, "infer"); err != nil {
		return PageOptions{}, err
	}
	return opts, nil
}

func relationFilterFrom(c echo.Context) (RelationFilter, error) {
	f := RelationFilter{
		RelationType: c.QueryParam("relation_type"),
		FromID:       c.QueryParam("from_id"),
		ToID:         c.QueryParam("to_id"),
		FromTypes:    c.QueryParams()["from_types"],
		ToTypes:      c.QueryParams()["to_types"],
	}
	if f.RelationType != "" && !typeql.ValidLabel(f.RelationType) {
		return RelationFilter{}, apperror.NewBadRequest("invalid relation_type")
	}
	for _, id := range []string{f.FromID, f.ToID} {
		if id != "" && !typeql.ValidIID(id) {
			return RelationFilter{}, apperror.NewBadRequest(fmt.Sprintf("invalid id %q", id))
		}
	}
	for _, l := range append(append([]string(nil), f.FromTypes...), f.ToTypes...) {
		if !typeql.ValidLabel(l) {
			return RelationFilter{}, apperror.NewBadRequest(fmt.Sprintf("invalid type %q", l))
		}
	}

	var err error
	for _, d := range []struct {
		name string
		dst  **time.Time
	}{
		{"first_seen_start", &f.FirstSeenStart},
		{"first_seen_stop", &f.FirstSeenStop},
		{"last_seen_start", &f.LastSeenStart},
		{"last_seen_stop", &f.LastSeenStop},
	} {
		if *d.dst, err = queryDate(c, d.name); err != nil {
			return RelationFilter{}, err
		}
	}
	if raw := c.QueryParam("weights"); raw != "" {
		if f.Weights, err = coerceToInt64s(raw); err != nil {
			return RelationFilter{}, apperror.NewBadRequest("invalid weights")
		}
	}
	return f, nil
}

func aggregateMethod(c echo.Context) (typeql.Method, error) {
	m, err := typeql.ParseMethod(c.QueryParam("operation"))
	if err != nil {
		return "", apperror.NewBadRequest("invalid operation")
	}
	return m, nil
}

func entityType(c echo.Context) (string, error) {
	t := c.QueryParam("type")
	if t != "" && !typeql.ValidLabel(t) {
		return "", apperror.NewBadRequest("invalid type")
	}
	return t, nil
}
