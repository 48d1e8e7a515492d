package graph

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

const orderVar = typeql.Var("order_by")

// PageOptions are the connection-style paging arguments.
type PageOptions struct {
	// First is the page size; nil uses the store default, 0 returns only
	// the count.
	First     *int
	After     string
	OrderBy   string
	OrderMode typeql.Order
	Infer     *bool
}

// PageQuery is the pattern Paginate pages over.
type PageQuery struct {
	Pattern  typeql.Pattern
	Node     string
	Relation string
}

// PageInfo describes the position of a page in the full answer set.
type PageInfo struct {
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	GlobalCount     int    `json:"globalCount"`
}

// Edge is one paged answer. Cursor resumes after it.
type Edge[T any] struct {
	Node     T      `json:"node"`
	Relation Record `json:"relation,omitempty"`
	Cursor   string `json:"cursor"`
}

// Page is a page of edges.
type Page[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

type pageWindow struct {
	offset int
	first  int
	infer  bool
}

func (s *Store) window(opts PageOptions) (pageWindow, error) {
	offset, err := decodeCursor(opts.After)
	if err != nil {
		return pageWindow{}, apperror.NewBadRequest("invalid cursor")
	}
	first := s.pageSize
	if opts.First != nil {
		first = *opts.First
	}
	if first < 0 {
		return pageWindow{}, apperror.NewBadRequest("first must not be negative")
	}
	return pageWindow{offset: offset, first: first, infer: s.inferOr(opts.Infer)}, nil
}

// orderedQueries builds the count and page queries over match. The order
// binding, when present, constrains both so the count matches the pages.
func orderedQueries(match *typeql.MatchClause, owner typeql.Var, vars []typeql.Var, w pageWindow, opts PageOptions) (count, page string, err error) {
	if opts.OrderBy != "" {
		if !typeql.ValidLabel(opts.OrderBy) {
			return "", "", apperror.NewBadRequest(fmt.Sprintf("invalid orderBy %q", opts.OrderBy))
		}
		match = match.And(owner.HasVar(opts.OrderBy, orderVar))
		vars = append(vars, orderVar)
	}
	if count, err = match.Get(vars...).Count().Build(); err != nil {
		return "", "", err
	}
	get := match.Get(vars...)
	if opts.OrderBy != "" {
		get = get.Sort(orderVar, opts.OrderMode)
	}
	if page, err = get.Offset(w.offset).Limit(w.first).Build(); err != nil {
		return "", "", err
	}
	return count, page, nil
}

// paginate runs the count and the page fetch concurrently, each in its
// own read scope, and assembles the envelope.
func paginate[T any](ctx context.Context, s *Store, op string, w pageWindow, count, page string,
	convert func(context.Context, graphdb.Transaction, []graphdb.Row) ([]Edge[T], error),
) (*Page[T], error) {
	var (
		total float64
		edges []Edge[T]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = readTx(gctx, s, op+"_count", w.infer, func(ctx context.Context, tx graphdb.Transaction) (float64, error) {
			return tx.Aggregate(ctx, count)
		})
		return err
	})
	if w.first > 0 {
		g.Go(func() error {
			var err error
			edges, err = readTx(gctx, s, op+"_page", w.infer, func(ctx context.Context, tx graphdb.Transaction) ([]Edge[T], error) {
				rows, err := tx.Query(ctx, page)
				if err != nil {
					return nil, err
				}
				return convert(ctx, tx, rows)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buildPage(edges, w.offset, int(total)), nil
}

func buildPage[T any](edges []Edge[T], offset, total int) *Page[T] {
	if edges == nil {
		edges = []Edge[T]{}
	}
	for i := range edges {
		edges[i].Cursor = encodeCursor(offset + i + 1)
	}
	info := PageInfo{
		HasNextPage:     offset+len(edges) < total,
		HasPreviousPage: offset > 0,
		GlobalCount:     total,
	}
	if len(edges) > 0 {
		info.StartCursor = edges[0].Cursor
		info.EndCursor = edges[len(edges)-1].Cursor
	}
	return &Page[T]{Edges: edges, PageInfo: info}
}

// Paginate pages the nodes bound by q.Pattern.
func (s *Store) Paginate(ctx context.Context, q PageQuery, opts PageOptions) (*Page[Record], error) {
	if q.Node == "" || len(q.Pattern) == 0 {
		return nil, fmt.Errorf("%w: pattern and node variable required", ErrMalformedQuery)
	}
	w, err := s.window(opts)
	if err != nil {
		return nil, err
	}
	vars := []typeql.Var{typeql.Var(q.Node)}
	if q.Relation != "" {
		vars = append(vars, typeql.Var(q.Relation))
	}
	count, page, err := orderedQueries(typeql.MatchPattern(q.Pattern), typeql.Var(q.Node), vars, w, opts)
	if err != nil {
		return nil, err
	}

	nq := NodeQuery{Node: q.Node, Relation: q.Relation}
	return paginate(ctx, s, "paginate", w, count, page, func(ctx context.Context, tx graphdb.Transaction, rows []graphdb.Row) ([]Edge[Record], error) {
		nodes, err := s.nodesFromRows(ctx, tx, rows, nq)
		if err != nil {
			return nil, err
		}
		edges := make([]Edge[Record], 0, len(nodes))
		for _, n := range nodes {
			edges = append(edges, Edge[Record]{Node: n.Node, Relation: n.Relation})
		}
		return edges, nil
	})
}

// RelationFilter narrows PaginateRelationships.
type RelationFilter struct {
	RelationType   string
	FromID         string
	ToID           string
	FromTypes      []string
	ToTypes        []string
	FirstSeenStart *time.Time
	FirstSeenStop  *time.Time
	LastSeenStart  *time.Time
	LastSeenStop   *time.Time
	Weights        []int64
}

func (f RelationFilter) relType() string {
	if f.RelationType == "" {
		return "relation"
	}
	return f.RelationType
}

// rolesBound reports whether the schema knows the roles of the filtered
// relation type. Without roles every binary relation matches once per
// endpoint permutation.
func (f RelationFilter) rolesBound(s *Store) bool {
	_, ok := s.schema.Relation(f.relType())
	return ok
}

// Pattern renders the filter as a match pattern over $rel, $from and $to.
// Known relation types bind their schema roles so each relation is
// matched in one orientation only.
func (f RelationFilter) Pattern(s *Store) typeql.Pattern {
	relType := f.relType()
	from, to := typeql.Role("", "from"), typeql.Role("", "to")
	if def, ok := s.schema.Relation(relType); ok {
		from.Role, to.Role = def.SourceRole, def.TargetRole
	}

	p := typeql.Pattern{typeql.Var("rel").Rel(from, to).Isa(relType)}
	if f.FromID != "" {
		p = append(p, typeql.Var("from").ID(f.FromID))
	}
	if f.ToID != "" {
		p = append(p, typeql.Var("to").ID(f.ToID))
	}
	if len(f.FromTypes) > 0 {
		p = append(p, typeAny("from", f.FromTypes))
	}
	if len(f.ToTypes) > 0 {
		p = append(p, typeAny("to", f.ToTypes))
	}
	p = appendRange(p, "first_seen", "fs", f.FirstSeenStart, f.FirstSeenStop)
	p = appendRange(p, "last_seen", "ls", f.LastSeenStart, f.LastSeenStop)
	if len(f.Weights) > 0 {
		w := typeql.Var("weight")
		p = append(p, typeql.Var("rel").HasVar("weight", w))
		branches := make([]typeql.Pattern, 0, len(f.Weights))
		for _, n := range f.Weights {
			branches = append(branches, typeql.Pattern{w.Compare(typeql.Eq, typeql.Long(n))})
		}
		p = append(p, typeql.Or(branches...))
	}
	return p
}

func typeAny(v typeql.Var, labels []string) typeql.Statement {
	branches := make([]typeql.Pattern, 0, len(labels))
	for _, l := range labels {
		branches = append(branches, typeql.Pattern{v.Isa(l)})
	}
	return typeql.Or(branches...)
}

// appendRange bounds attr strictly on both sides.
func appendRange(p typeql.Pattern, attr string, v typeql.Var, start, stop *time.Time) typeql.Pattern {
	if start == nil && stop == nil {
		return p
	}
	p = append(p, typeql.Var("rel").HasVar(attr, v))
	if start != nil {
		p = append(p, v.Compare(typeql.Gt, typeql.DateTime(*start)))
	}
	if stop != nil {
		p = append(p, v.Compare(typeql.Lt, typeql.DateTime(*stop)))
	}
	return p
}

// PaginateRelationships pages the relations matching f. When the relation
// roles are unknown the count and the window run over distinct $rel only,
// and each relation's endpoints are bound by a follow-up query.
func (s *Store) PaginateRelationships(ctx context.Context, f RelationFilter, opts PageOptions) (*Page[Relation], error) {
	w, err := s.window(opts)
	if err != nil {
		return nil, err
	}
	pattern := f.Pattern(s)
	distinct := !f.rolesBound(s)
	vars := []typeql.Var{"rel", "from", "to"}
	if distinct {
		vars = []typeql.Var{"rel"}
	}
	count, page, err := orderedQueries(typeql.MatchPattern(pattern), "rel", vars, w, opts)
	if err != nil {
		return nil, err
	}

	rq := RelationQuery{Relation: "rel", From: "from", To: "to"}
	return paginate(ctx, s, "paginate_relations", w, count, page, func(ctx context.Context, tx graphdb.Transaction, rows []graphdb.Row) ([]Edge[Relation], error) {
		if distinct {
			var err error
			if rows, err = bindEndpoints(ctx, tx, pattern, rows); err != nil {
				return nil, err
			}
		}
		rels, err := s.relationsFromRows(ctx, tx, rows, rq)
		if err != nil {
			return nil, err
		}
		edges := make([]Edge[Relation], 0, len(rels))
		for _, r := range rels {
			edges = append(edges, Edge[Relation]{Node: r})
		}
		return edges, nil
	})
}

// bindEndpoints replaces each distinct $rel answer with one full answer of
// pattern pinned to that relation. Relations that no longer match are
// dropped.
func bindEndpoints(ctx context.Context, tx graphdb.Transaction, pattern typeql.Pattern, rows []graphdb.Row) ([]graphdb.Row, error) {
	out := make([]graphdb.Row, 0, len(rows))
	for _, row := range rows {
		rc, err := requireVar(row, "rel")
		if err != nil {
			return nil, err
		}
		pinned := append(append(typeql.Pattern(nil), pattern...), typeql.Var("rel").ID(rc.IID))
		text, err := build(typeql.MatchPattern(pinned).Get().Limit(1))
		if err != nil {
			return nil, err
		}
		full, err := tx.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(full) > 0 {
			out = append(out, full[0])
		}
	}
	return out, nil
}
