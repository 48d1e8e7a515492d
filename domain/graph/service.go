package graph

import (
	"context"
	"log/slog"

	"github.com/emergent-company/emergent.graphcore/domain/events"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// Publisher receives notifications after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, n events.Notification)
}

// Service exposes the store to the HTTP surface and announces mutations.
type Service struct {
	store *Store
	bus   Publisher
	log   *slog.Logger
}

// NewService creates a graph service.
func NewService(store *Store, bus *events.Service, log *slog.Logger) *Service {
	return newService(store, bus, log)
}

func newService(store *Store, bus Publisher, log *slog.Logger) *Service {
	return &Service{store: store, bus: bus, log: log.With(logger.Scope("graph.svc"))}
}

func (s *Service) publish(ctx context.Context, topic events.Topic, actor *events.ActorContext, instance any, extra map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(context.WithoutCancel(ctx), topic, events.Notification{
		Instance: instance,
		Actor:    actor,
		Context:  extra,
	})
}

func typePattern(node, entityType string) typeql.Pattern {
	if entityType == "" {
		entityType = "entity"
	}
	return typeql.Pattern{typeql.Var(node).Isa(entityType)}
}

// GetEntity returns the entity record or apperror.ErrNotFound.
func (s *Service) GetEntity(ctx context.Context, id string, bypassCache bool) (Record, error) {
	rec, err := s.store.LoadByID(ctx, id, bypassCache)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.NewNotFound("entity", id)
	}
	return rec, nil
}

// ListEntities pages the instances of entityType.
func (s *Service) ListEntities(ctx context.Context, entityType string, opts PageOptions) (*Page[Record], error) {
	return s.store.Paginate(ctx, PageQuery{Pattern: typePattern("x", entityType), Node: "x"}, opts)
}

// ListEntityRelations returns every relation the entity id plays in, of
// relType when set.
func (s *Service) ListEntityRelations(ctx context.Context, id, relType string, infer *bool) ([]Relation, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if relType == "" {
		relType = "relation"
	}
	q := typeql.Match(
		typeql.Var("rel").Rel(typeql.Role("", "from"), typeql.Role("", "to")).Isa(relType),
		typeql.Var("from").ID(id),
	).Get()
	return s.store.FetchRelations(ctx, q, RelationQuery{Relation: "rel", From: "from", To: "to", Infer: infer})
}

// ListRelations pages relations matching f.
func (s *Service) ListRelations(ctx context.Context, f RelationFilter, opts PageOptions) (*Page[Relation], error) {
	return s.store.PaginateRelationships(ctx, f, opts)
}

// GetRelation returns the relation or apperror.ErrNotFound.
func (s *Service) GetRelation(ctx context.Context, id string) (*Relation, error) {
	rel, err := s.store.LoadRelationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, apperror.NewNotFound("relation", id)
	}
	return rel, nil
}

// CreateRelation creates a relation and announces it.
func (s *Service) CreateRelation(ctx context.Context, actor *events.ActorContext, fromID string, in RelationInput) (*CreatedRelation, error) {
	out, err := s.store.CreateRelation(ctx, fromID, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicRelationCreated, actor, out.Relation, map[string]any{
		"fromId": fromID,
		"toId":   in.ToID,
	})
	return out, nil
}

// UpdateAttribute replaces an attribute and announces the new record.
func (s *Service) UpdateAttribute(ctx context.Context, actor *events.ActorContext, id string, in AttributeInput) (Record, error) {
	rec, err := s.store.UpdateAttribute(ctx, id, in, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicEntityUpdated, actor, rec, map[string]any{"key": in.Key})
	return rec, nil
}

// DeleteEntity deletes the entity, with its relations when cascade is set.
func (s *Service) DeleteEntity(ctx context.Context, actor *events.ActorContext, id string, cascade bool) error {
	var err error
	if cascade {
		err = s.store.DeleteEntityCascading(ctx, id)
	} else {
		err = s.store.DeleteEntity(ctx, id)
	}
	if err != nil {
		return err
	}
	s.publish(ctx, events.TopicEntityDeleted, actor, Record{FieldID: id}, map[string]any{"cascade": cascade})
	return nil
}

// DeleteRelation deletes a materialized relation.
func (s *Service) DeleteRelation(ctx context.Context, actor *events.ActorContext, id string) error {
	if err := s.store.DeleteRelation(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.TopicRelationDeleted, actor, Record{FieldID: id}, nil)
	return nil
}

// TimeSeries aggregates instances of entityType over time.
func (s *Service) TimeSeries(ctx context.Context, entityType string, opts TimeSeriesOptions) ([]Point, error) {
	return s.store.TimeSeries(ctx, typePattern("x", entityType), "x", opts)
}

// Distribution aggregates instances of entityType by attribute value.
func (s *Service) Distribution(ctx context.Context, entityType string, opts DistributionOptions) ([]Bucket, error) {
	return s.store.Distribution(ctx, typePattern("x", entityType), "x", opts)
}
