package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

func newUUID() string { return uuid.NewString() }

// RelationInput describes a relation to create from an existing entity.
type RelationInput struct {
	ToID      string     `json:"toId"`
	Type      string     `json:"through"`
	FromRole  string     `json:"fromRole,omitempty"`
	ToRole    string     `json:"toRole,omitempty"`
	StixID    string     `json:"stix_id_key,omitempty"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Weight    *int64     `json:"weight,omitempty"`
}

// CreatedRelation is the target node and the new relation's record.
type CreatedRelation struct {
	Node     Record `json:"node"`
	Relation Record `json:"relation"`
}

// AttributeInput replaces every value of Key with Value.
type AttributeInput struct {
	Key   string   `json:"key"`
	Value []string `json:"value"`
}

func checkID(id string) error {
	if !typeql.ValidIID(id) {
		return apperror.NewBadRequest(fmt.Sprintf("invalid id %q", id))
	}
	return nil
}

// dateDerivatives returns the day, month and year bucket attributes kept
// next to statistic date attributes.
func dateDerivatives(key string, t time.Time) [][2]string {
	t = t.UTC()
	return [][2]string{
		{key + "_day", t.Format("2006-01-02")},
		{key + "_month", t.Format("2006-01")},
		{key + "_year", t.Format("2006")},
	}
}

func (s *Store) withDate(st *typeql.ThingStatement, key string, t time.Time) *typeql.ThingStatement {
	st = st.Has(key, typeql.DateTime(t))
	if s.schema.IsStatisticDate(key) {
		for _, d := range dateDerivatives(key, t) {
			st = st.Has(d[0], typeql.String(d[1]))
		}
	}
	return st
}

// CreateRelation inserts a relation between fromID and in.ToID in one
// write transaction. Roles default to the type's canonical roles.
func (s *Store) CreateRelation(ctx context.Context, fromID string, in RelationInput) (*CreatedRelation, error) {
	if err := checkID(fromID); err != nil {
		return nil, err
	}
	if err := checkID(in.ToID); err != nil {
		return nil, err
	}
	if !typeql.ValidLabel(in.Type) {
		return nil, apperror.ErrValidation.WithMessage(fmt.Sprintf("invalid relation type %q", in.Type))
	}
	fromRole, toRole := in.FromRole, in.ToRole
	if fromRole == "" || toRole == "" {
		def, ok := s.schema.Relation(in.Type)
		if !ok {
			return nil, apperror.ErrValidation.WithMessage(fmt.Sprintf("roles required for relation type %q", in.Type))
		}
		if fromRole == "" {
			fromRole = def.SourceRole
		}
		if toRole == "" {
			toRole = def.TargetRole
		}
	}

	internalID := s.newID()
	stixID := in.StixID
	if stixID == "" {
		stixID = "relationship--" + s.newID()
	}
	now := s.now()

	rel := typeql.Var("rel").
		Rel(typeql.Role(fromRole, "from"), typeql.Role(toRole, "to")).
		Isa(in.Type).
		Has("internal_id_key", typeql.String(internalID)).
		Has("stix_id_key", typeql.String(stixID)).
		Has("relationship_type", typeql.String(in.Type))
	if in.FirstSeen != nil {
		rel = s.withDate(rel, "first_seen", *in.FirstSeen)
	}
	if in.LastSeen != nil {
		rel = s.withDate(rel, "last_seen", *in.LastSeen)
	}
	if in.Weight != nil {
		rel = rel.Has("weight", typeql.Long(*in.Weight))
	}
	rel = s.withDate(rel, "created_at", now)
	rel = s.withDate(rel, "updated_at", now)

	text, err := build(typeql.Match(
		typeql.Var("from").ID(fromID),
		typeql.Var("to").ID(in.ToID),
	).Insert(rel))
	if err != nil {
		return nil, err
	}

	return writeTx(ctx, s, "create_relation", func(ctx context.Context, tx graphdb.Transaction) (*CreatedRelation, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, apperror.NewNotFound("entity", fromID+" or "+in.ToID)
		}
		tc, err := requireVar(rows[0], "to")
		if err != nil {
			return nil, err
		}
		rc, err := requireVar(rows[0], "rel")
		if err != nil {
			return nil, err
		}
		out := &CreatedRelation{}
		if out.Node, err = s.resolveAttributes(ctx, tx, tc, true); err != nil {
			return nil, err
		}
		if out.Relation, err = s.resolveAttributes(ctx, tx, rc, true); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// UpdateAttribute replaces the values of in.Key on the concept id. With a
// caller transaction it composes into it and returns a nil record; the
// caller commits. Otherwise it commits its own write transaction and
// returns the reloaded record.
func (s *Store) UpdateAttribute(ctx context.Context, id string, in AttributeInput, tx graphdb.Transaction) (Record, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if !typeql.ValidLabel(in.Key) {
		return nil, apperror.ErrValidation.WithMessage(fmt.Sprintf("invalid attribute %q", in.Key))
	}
	if tx != nil {
		return nil, s.updateAttributeIn(ctx, tx, id, in)
	}

	_, err := writeTx(ctx, s, "update_attribute", func(ctx context.Context, tx graphdb.Transaction) (struct{}, error) {
		return struct{}{}, s.updateAttributeIn(ctx, tx, id, in)
	})
	if err != nil {
		return nil, err
	}
	return s.LoadByID(ctx, id, true)
}

func (s *Store) updateAttributeIn(ctx context.Context, tx graphdb.Transaction, id string, in AttributeInput) error {
	valueType, err := s.valueType(ctx, tx, in.Key)
	if err != nil {
		return err
	}

	current, err := build(typeql.Match(
		typeql.Var("x").ID(id),
		typeql.Var("x").HasVar(in.Key, "a"),
	).Get(typeql.Var("a")))
	if err != nil {
		return err
	}
	rows, err := tx.Query(ctx, current)
	if err != nil {
		return err
	}
	for _, row := range rows {
		a, err := requireVar(row, "a")
		if err != nil {
			return err
		}
		if err := s.releaseValue(ctx, tx, id, in.Key, a.IID); err != nil {
			return err
		}
	}

	values := in.Value
	if !s.schema.IsMulti(in.Key) && len(values) > 1 {
		values = values[:1]
	}
	if len(values) > 0 {
		var st *typeql.ThingStatement
		for _, raw := range values {
			v, err := typeql.ParseValue(valueType, raw)
			if err != nil {
				return err
			}
			if st == nil {
				st = typeql.Var("x").Has(in.Key, v)
			} else {
				st = st.Has(in.Key, v)
			}
		}
		text, err := build(typeql.Match(typeql.Var("x").ID(id)).Insert(st))
		if err != nil {
			return err
		}
		if _, err := tx.Query(ctx, text); err != nil {
			return err
		}
	}

	if s.schema.IsStatisticDate(in.Key) && len(values) > 0 {
		t, err := typeql.ParseDateTime(values[0])
		if err != nil {
			return err
		}
		for _, d := range dateDerivatives(in.Key, t) {
			if err := s.updateAttributeIn(ctx, tx, id, AttributeInput{Key: d[0], Value: []string{d[1]}}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) valueType(ctx context.Context, tx graphdb.Transaction, key string) (string, error) {
	text, err := build(typeql.Match(typeql.Var("t").Type(key)).Get())
	if err != nil {
		return "", err
	}
	rows, err := tx.Query(ctx, text)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown attribute %q", key))
	}
	t, err := requireVar(rows[0], "t")
	if err != nil {
		return "", err
	}
	return t.ValueType, nil
}

// releaseValue detaches attribute value aIID from id. A value shared with
// other owners loses only this ownership edge; a value owned by id alone
// is deleted.
func (s *Store) releaseValue(ctx context.Context, tx graphdb.Transaction, id, key, aIID string) error {
	countQ, err := build(typeql.Match(
		typeql.Var("a").ID(aIID),
		typeql.Var("o").HasVar(key, "a"),
	).Get(typeql.Var("o")).Count())
	if err != nil {
		return err
	}
	owners, err := tx.Aggregate(ctx, countQ)
	if err != nil {
		return err
	}

	var del typeql.Query
	if owners > 1 {
		del = typeql.Match(
			typeql.Var("x").ID(id),
			typeql.Var("a").ID(aIID),
			typeql.Var("x").HasVia(key, "a", "r"),
		).Delete("r")
	} else {
		del = typeql.Match(typeql.Var("a").ID(aIID)).Delete("a")
	}
	text, err := build(del)
	if err != nil {
		return err
	}
	_, err = tx.Query(ctx, text)
	return err
}

func (s *Store) requireConcept(ctx context.Context, tx graphdb.Transaction, kind, id string) error {
	text, err := build(typeql.Match(typeql.Var("x").ID(id)).Get(typeql.Var("x")))
	if err != nil {
		return err
	}
	rows, err := tx.Query(ctx, text)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperror.NewNotFound(kind, id)
	}
	return nil
}

func (s *Store) deleteConcept(ctx context.Context, op, kind, id string, cascade bool) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := writeTx(ctx, s, op, func(ctx context.Context, tx graphdb.Transaction) (struct{}, error) {
		if err := s.requireConcept(ctx, tx, kind, id); err != nil {
			return struct{}{}, err
		}
		if cascade {
			text, err := build(typeql.Match(
				typeql.Var("x").ID(id),
				typeql.Var("rel").Rel(typeql.Role("", "x")).Isa("relation"),
			).Delete("rel"))
			if err != nil {
				return struct{}{}, err
			}
			if _, err := tx.Query(ctx, text); err != nil {
				return struct{}{}, err
			}
		}
		text, err := build(typeql.Match(typeql.Var("x").ID(id)).Delete("x"))
		if err != nil {
			return struct{}{}, err
		}
		_, err = tx.Query(ctx, text)
		return struct{}{}, err
	})
	return err
}

// DeleteEntity deletes the entity id.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	return s.deleteConcept(ctx, "delete_entity", "entity", id, false)
}

// DeleteEntityCascading deletes every relation the entity plays in, then
// the entity, in one write transaction.
func (s *Store) DeleteEntityCascading(ctx context.Context, id string) error {
	return s.deleteConcept(ctx, "delete_entity_cascading", "entity", id, true)
}

// DeleteRelation deletes the materialized relation id. Inferred relations
// cannot be deleted.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	if IsInferenceToken(id) {
		return apperror.NewBadRequest("inferred relations cannot be deleted")
	}
	return s.deleteConcept(ctx, "delete_relation", "relation", id, false)
}
