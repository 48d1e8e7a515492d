package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// NodeQuery names the variables FetchNodes reads from each answer.
type NodeQuery struct {
	Node     string
	Relation string
	Infer    *bool
}

// RelationQuery names the variables FetchRelations reads from each answer.
type RelationQuery struct {
	Relation string
	From     string
	To       string
	Extra    string
	Infer    *bool
}

func (s *Store) inferOr(p *bool) bool {
	if p != nil {
		return *p
	}
	return s.infer
}

func build(q typeql.Query) (string, error) { return q.Build() }

func requireVar(row graphdb.Row, v string) (graphdb.Concept, error) {
	c, ok := row.Get(v)
	if !ok {
		return graphdb.Concept{}, fmt.Errorf("%w: variable $%s is not bound", ErrMalformedQuery, v)
	}
	return c, nil
}

func (s *Store) resolveRow(ctx context.Context, tx graphdb.Transaction, row graphdb.Row, vars []string) (map[string]Record, error) {
	out := make(map[string]Record, len(vars))
	for _, v := range vars {
		c, err := requireVar(row, v)
		if err != nil {
			return nil, err
		}
		rec, err := s.resolveAttributes(ctx, tx, c, false)
		if err != nil {
			return nil, err
		}
		out[v] = rec
	}
	return out, nil
}

// FetchSingle returns the records bound to vars in the first answer of q,
// or nil when there is none.
func (s *Store) FetchSingle(ctx context.Context, q typeql.Query, vars ...string) (map[string]Record, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: no variables requested", ErrMalformedQuery)
	}
	text, err := build(q)
	if err != nil {
		return nil, err
	}
	return readTx(ctx, s, "fetch_single", s.infer, func(ctx context.Context, tx graphdb.Transaction) (map[string]Record, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return s.resolveRow(ctx, tx, rows[0], vars)
	})
}

// FetchAll returns one map of records per answer of q.
func (s *Store) FetchAll(ctx context.Context, q typeql.Query, vars ...string) ([]map[string]Record, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: no variables requested", ErrMalformedQuery)
	}
	text, err := build(q)
	if err != nil {
		return nil, err
	}
	return readTx(ctx, s, "fetch_all", s.infer, func(ctx context.Context, tx graphdb.Transaction) ([]map[string]Record, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]Record, 0, len(rows))
		for _, row := range rows {
			recs, err := s.resolveRow(ctx, tx, row, vars)
			if err != nil {
				return nil, err
			}
			out = append(out, recs)
		}
		return out, nil
	})
}

// FetchNodes returns the node of each answer, with the relation that led
// to it when nq.Relation is set.
func (s *Store) FetchNodes(ctx context.Context, q typeql.Query, nq NodeQuery) ([]NodeResult, error) {
	if nq.Node == "" {
		return nil, fmt.Errorf("%w: node variable required", ErrMalformedQuery)
	}
	text, err := build(q)
	if err != nil {
		return nil, err
	}
	return readTx(ctx, s, "fetch_nodes", s.inferOr(nq.Infer), func(ctx context.Context, tx graphdb.Transaction) ([]NodeResult, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		return s.nodesFromRows(ctx, tx, rows, nq)
	})
}

func (s *Store) nodesFromRows(ctx context.Context, tx graphdb.Transaction, rows []graphdb.Row, nq NodeQuery) ([]NodeResult, error) {
	out := make([]NodeResult, 0, len(rows))
	for _, row := range rows {
		nc, err := requireVar(row, nq.Node)
		if err != nil {
			return nil, err
		}
		node, err := s.resolveAttributes(ctx, tx, nc, false)
		if err != nil {
			return nil, err
		}
		res := NodeResult{Node: node}
		if nq.Relation != "" {
			rc, err := requireVar(row, nq.Relation)
			if err != nil {
				return nil, err
			}
			if res.Relation, err = s.relationStub(ctx, tx, rc); err != nil {
				return nil, err
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// relationStub is the record of a relation seen from one endpoint. Inferred
// relations have no attributes of their own.
func (s *Store) relationStub(ctx context.Context, tx graphdb.Transaction, rc graphdb.Concept) (Record, error) {
	if rc.Inferred {
		return Record{
			FieldID:             rc.IID,
			"type":              "relation",
			"relationship_type": rc.Type,
			"inferred":          true,
		}, nil
	}
	rec, err := s.resolveAttributes(ctx, tx, rc, false)
	if err != nil {
		return nil, err
	}
	rec["inferred"] = false
	return rec, nil
}

// FetchRelations returns one canonically oriented relation per answer.
// Inferred relations carry an inference token as id and their rebuilt
// sub-inferences.
func (s *Store) FetchRelations(ctx context.Context, q typeql.Query, rq RelationQuery) ([]Relation, error) {
	if rq.Relation == "" || rq.From == "" || rq.To == "" {
		return nil, fmt.Errorf("%w: relation, from and to variables required", ErrMalformedQuery)
	}
	text, err := build(q)
	if err != nil {
		return nil, err
	}
	return readTx(ctx, s, "fetch_relations", s.inferOr(rq.Infer), func(ctx context.Context, tx graphdb.Transaction) ([]Relation, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		return s.relationsFromRows(ctx, tx, rows, rq)
	})
}

func (s *Store) relationsFromRows(ctx context.Context, tx graphdb.Transaction, rows []graphdb.Row, rq RelationQuery) ([]Relation, error) {
	out := make([]Relation, 0, len(rows))
	for _, row := range rows {
		rel, err := s.relationFromRow(ctx, tx, row, rq)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func (s *Store) relationFromRow(ctx context.Context, tx graphdb.Transaction, row graphdb.Row, rq RelationQuery) (Relation, error) {
	rc, err := requireVar(row, rq.Relation)
	if err != nil {
		return Relation{}, err
	}
	fc, err := requireVar(row, rq.From)
	if err != nil {
		return Relation{}, err
	}
	tc, err := requireVar(row, rq.To)
	if err != nil {
		return Relation{}, err
	}

	rel := Relation{ID: rc.IID, RelationshipType: rc.Type, Inferred: rc.Inferred}
	if rel.From, err = s.resolveAttributes(ctx, tx, fc, false); err != nil {
		return Relation{}, err
	}
	if rel.To, err = s.resolveAttributes(ctx, tx, tc, false); err != nil {
		return Relation{}, err
	}
	if rq.Extra != "" {
		if ec, ok := row.Get(rq.Extra); ok {
			if rel.Extra, err = s.resolveAttributes(ctx, tx, ec, false); err != nil {
				return Relation{}, err
			}
		}
	}

	if !rc.Inferred {
		if rel.Attributes, err = s.resolveAttributes(ctx, tx, rc, false); err != nil {
			return Relation{}, err
		}
		s.orient(&rel, fc, tc)
		return rel, nil
	}

	s.orient(&rel, fc, tc)
	if rel.ID, err = relationToken(rel); err != nil {
		return Relation{}, err
	}
	if rel.Inferences, err = s.reconstruct(ctx, tx, row, rq.Relation); err != nil {
		return Relation{}, err
	}
	return rel, nil
}

// relationToken encodes a pattern matching exactly rel between its two
// oriented endpoints.
func relationToken(rel Relation) (string, error) {
	text, err := typeql.Pattern{
		typeql.Var("rel").Rel(typeql.Role("", "from"), typeql.Role("", "to")).Isa(rel.RelationshipType),
		typeql.Var("from").ID(rel.From.ID()),
		typeql.Var("to").ID(rel.To.ID()),
	}.Render()
	if err != nil {
		return "", err
	}
	return EncodeInferenceToken(text), nil
}

// reconstruct rebuilds the relations an inferred answer was derived from:
// every explanation pattern is bound, all are matched together, and each
// sub-relation is read back from the combined answer.
func (s *Store) reconstruct(ctx context.Context, tx graphdb.Transaction, row graphdb.Row, relVar string) ([]Relation, error) {
	explainable, ok := row.Explainables[relVar]
	if !ok {
		return nil, nil
	}
	explanations, err := tx.Explain(ctx, explainable)
	if err != nil {
		return nil, fmt.Errorf("explain %s: %w", explainable, err)
	}

	var bound []BoundPattern
	for i, ex := range explanations {
		b, err := s.rewriter.Bind(ex.Pattern, i)
		if errors.Is(err, ErrNoRelation) {
			continue
		}
		if err != nil {
			inferenceReconstructions.WithLabelValues("unparsed").Inc()
			s.log.Warn("skipping explanation pattern",
				slog.String("rule", ex.Rule),
				slog.String("pattern", ex.Pattern),
				logger.Error(err))
			continue
		}
		bound = append(bound, b)
	}
	if len(bound) == 0 {
		return nil, nil
	}

	stmts := make([]typeql.Statement, 0, len(bound))
	for _, b := range bound {
		stmts = append(stmts, typeql.Raw(b.Text()))
	}
	text, err := build(typeql.Match(stmts...).Get())
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("combined explanation query: %w", err)
	}
	if len(rows) == 0 {
		inferenceReconstructions.WithLabelValues("empty").Inc()
		s.log.Warn("explanation patterns matched nothing", slog.String("explainable", explainable))
		return nil, nil
	}

	combined := rows[0]
	out := make([]Relation, 0, len(bound))
	for _, b := range bound {
		inf, ok, err := s.subInference(ctx, tx, combined, b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, inf)
		}
	}
	inferenceReconstructions.WithLabelValues("ok").Inc()
	return out, nil
}

func (s *Store) subInference(ctx context.Context, tx graphdb.Transaction, row graphdb.Row, b BoundPattern) (Relation, bool, error) {
	rc, ok := row.Get(b.RelVar)
	if !ok {
		return Relation{}, false, nil
	}
	vars := b.playerVars()
	if len(vars) < 2 {
		return Relation{}, false, nil
	}
	fc, okFrom := row.Get(vars[0])
	tc, okTo := row.Get(vars[1])
	if !okFrom || !okTo {
		return Relation{}, false, nil
	}

	relType := rc.Type
	if relType == "" {
		relType = b.Type
	}
	inf := Relation{ID: rc.IID, RelationshipType: relType, Inferred: rc.Inferred}
	var err error
	if inf.From, err = s.resolveAttributes(ctx, tx, fc, false); err != nil {
		return Relation{}, false, err
	}
	if inf.To, err = s.resolveAttributes(ctx, tx, tc, false); err != nil {
		return Relation{}, false, err
	}

	if rc.Inferred {
		ids := make(map[string]string, len(vars))
		for _, v := range vars {
			if c, ok := row.Get(v); ok {
				ids[v] = c.IID
			}
		}
		pinned, err := s.rewriter.Pin(b, ids)
		if err != nil {
			inferenceReconstructions.WithLabelValues("unpinned").Inc()
			s.log.Warn("skipping sub-inference that cannot be pinned",
				slog.String("pattern", b.Text()),
				logger.Error(err))
			return Relation{}, false, nil
		}
		inf.ID = EncodeInferenceToken(pinned)
	} else if inf.Attributes, err = s.resolveAttributes(ctx, tx, rc, false); err != nil {
		return Relation{}, false, err
	}

	s.orient(&inf, fc, tc)
	return inf, true, nil
}

// LoadByID returns the attribute record of the concept with id, or nil.
func (s *Store) LoadByID(ctx context.Context, id string, bypassCache bool) (Record, error) {
	if !typeql.ValidIID(id) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid id %q", id))
	}
	text, err := build(typeql.Match(typeql.Var("x").ID(id)).Get(typeql.Var("x")))
	if err != nil {
		return nil, err
	}
	return readTx(ctx, s, "load_by_id", s.infer, func(ctx context.Context, tx graphdb.Transaction) (Record, error) {
		rows, err := tx.Query(ctx, text)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		c, err := requireVar(rows[0], "x")
		if err != nil {
			return nil, err
		}
		return s.resolveAttributes(ctx, tx, c, bypassCache)
	})
}

// LoadRelationByID returns the relation with id, or nil. id is either an
// engine identifier or an inference token.
func (s *Store) LoadRelationByID(ctx context.Context, id string) (*Relation, error) {
	if IsInferenceToken(id) {
		return s.loadInferred(ctx, id)
	}
	if !typeql.ValidIID(id) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid id %q", id))
	}
	q := typeql.Match(
		typeql.Var("rel").Rel(typeql.Role("", "from"), typeql.Role("", "to")).ID(id),
	).Get()
	rels, err := s.FetchRelations(ctx, q, RelationQuery{Relation: "rel", From: "from", To: "to"})
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return &rels[0], nil
}

func (s *Store) loadInferred(ctx context.Context, token string) (*Relation, error) {
	text, err := DecodeInferenceToken(token)
	if err != nil {
		return nil, apperror.NewBadRequest("invalid inference token")
	}
	b, err := s.rewriter.Parse(text)
	if err != nil {
		return nil, apperror.NewBadRequest("invalid inference token")
	}
	vars := b.playerVars()
	if len(vars) < 2 {
		return nil, apperror.NewBadRequest("invalid inference token")
	}

	infer := true
	rels, err := s.FetchRelations(ctx, typeql.Match(typeql.Raw(b.Text())).Get(), RelationQuery{
		Relation: b.RelVar,
		From:     vars[0],
		To:       vars[1],
		Infer:    &infer,
	})
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	rel := rels[0]
	rel.ID = token
	return &rel, nil
}
