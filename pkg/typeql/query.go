package typeql

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is anything that renders to query text.
type Query interface {
	Build() (string, error)
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder accepts "asc"/"desc" (any case); empty means Asc.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: order %q", ErrInvalid, s)
	}
}

// Method is an aggregate function.
type Method string

const (
	Count  Method = "count"
	Sum    Method = "sum"
	Max    Method = "max"
	Min    Method = "min"
	Mean   Method = "mean"
	Median Method = "median"
	Std    Method = "std"
)

// ParseMethod accepts an aggregate name; empty means Count.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return Count, nil
	case Count, Sum, Max, Min, Mean, Median, Std:
		return m, nil
	default:
		return "", fmt.Errorf("%w: aggregate %q", ErrInvalid, s)
	}
}

// MatchClause is the match part shared by get, insert and delete queries.
type MatchClause struct {
	pattern Pattern
}

// Match starts a query from a conjunction of statements.
func Match(stmts ...Statement) *MatchClause {
	return &MatchClause{pattern: append(Pattern(nil), stmts...)}
}

// MatchPattern starts a query from an existing pattern.
func MatchPattern(p Pattern) *MatchClause {
	return Match(p...)
}

// And returns a new clause with stmts appended; the receiver is unchanged.
func (m *MatchClause) And(stmts ...Statement) *MatchClause {
	p := make(Pattern, 0, len(m.pattern)+len(stmts))
	p = append(p, m.pattern...)
	p = append(p, stmts...)
	return &MatchClause{pattern: p}
}

// Pattern returns a copy of the clause's statements.
func (m *MatchClause) Pattern() Pattern {
	return append(Pattern(nil), m.pattern...)
}

func (m *MatchClause) render() (string, error) {
	if len(m.pattern) == 0 {
		return "", fmt.Errorf("%w: empty match", ErrInvalid)
	}
	body, err := m.pattern.Render()
	if err != nil {
		return "", err
	}
	return "match " + body, nil
}

func renderVars(vars []Var) (string, error) {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		s, err := v.render()
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// GetQuery is match … get …; with optional sort/offset/limit modifiers.
type GetQuery struct {
	match     *MatchClause
	vars      []Var
	sortVar   Var
	sortOrder Order
	offset    *int
	limit     *int
}

// Get selects vars; no vars selects every bound variable.
func (m *MatchClause) Get(vars ...Var) *GetQuery {
	return &GetQuery{match: m, vars: vars}
}

// Sort orders answers by the value bound to v.
func (g *GetQuery) Sort(v Var, order Order) *GetQuery {
	g.sortVar, g.sortOrder = v, order
	return g
}

// Offset skips n answers.
func (g *GetQuery) Offset(n int) *GetQuery {
	g.offset = &n
	return g
}

// Limit caps the answer count at n.
func (g *GetQuery) Limit(n int) *GetQuery {
	g.limit = &n
	return g
}

func (g *GetQuery) renderGet() (string, error) {
	m, err := g.match.render()
	if err != nil {
		return "", err
	}
	vars, err := renderVars(g.vars)
	if err != nil {
		return "", err
	}
	if vars == "" {
		return m + " get;", nil
	}
	return m + " get " + vars + ";", nil
}

// Build renders the query.
func (g *GetQuery) Build() (string, error) {
	out, err := g.renderGet()
	if err != nil {
		return "", err
	}
	if g.sortVar != "" {
		sv, err := g.sortVar.render()
		if err != nil {
			return "", err
		}
		order := g.sortOrder
		if order == "" {
			order = Asc
		}
		if order != Asc && order != Desc {
			return "", fmt.Errorf("%w: order %q", ErrInvalid, order)
		}
		out += " sort " + sv + " " + string(order) + ";"
	}
	if g.offset != nil {
		if *g.offset < 0 {
			return "", fmt.Errorf("%w: negative offset", ErrInvalid)
		}
		out += " offset " + strconv.Itoa(*g.offset) + ";"
	}
	if g.limit != nil {
		if *g.limit < 0 {
			return "", fmt.Errorf("%w: negative limit", ErrInvalid)
		}
		out += " limit " + strconv.Itoa(*g.limit) + ";"
	}
	return out, nil
}

// AggregateQuery is match … get …; <method> [$v];
type AggregateQuery struct {
	get    *GetQuery
	method Method
	v      Var
}

// Count counts the answers of g.
func (g *GetQuery) Count() *AggregateQuery {
	return &AggregateQuery{get: g, method: Count}
}

// Aggregate applies method to the values bound to v.
func (g *GetQuery) Aggregate(method Method, v Var) *AggregateQuery {
	return &AggregateQuery{get: g, method: method, v: v}
}

func renderMethod(method Method, v Var) (string, error) {
	if method == Count {
		return " count;", nil
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s needs a variable", ErrInvalid, method)
	}
	vs, err := v.render()
	if err != nil {
		return "", err
	}
	return " " + string(method) + " " + vs + ";", nil
}

// Build renders the query. Sort/offset/limit on the inner get are ignored.
func (a *AggregateQuery) Build() (string, error) {
	out, err := a.get.renderGet()
	if err != nil {
		return "", err
	}
	tail, err := renderMethod(a.method, a.v)
	if err != nil {
		return "", err
	}
	return out + tail, nil
}

// GroupQuery is match … get …; group $g; <method> [$v];
type GroupQuery struct {
	get    *GetQuery
	by     Var
	method Method
	v      Var
}

// Group groups answers by the concept bound to by and counts each group.
func (g *GetQuery) Group(by Var) *GroupQuery {
	return &GroupQuery{get: g, by: by, method: Count}
}

// Aggregate replaces the per-group count with method over v.
func (q *GroupQuery) Aggregate(method Method, v Var) *GroupQuery {
	q.method, q.v = method, v
	return q
}

// Build renders the query.
func (q *GroupQuery) Build() (string, error) {
	out, err := q.get.renderGet()
	if err != nil {
		return "", err
	}
	by, err := q.by.render()
	if err != nil {
		return "", err
	}
	tail, err := renderMethod(q.method, q.v)
	if err != nil {
		return "", err
	}
	return out + " group " + by + ";" + tail, nil
}

// InsertQuery is [match …;] insert …;
type InsertQuery struct {
	match *MatchClause
	stmts Pattern
}

// Insert builds a standalone insert.
func Insert(stmts ...Statement) *InsertQuery {
	return &InsertQuery{stmts: stmts}
}

// Insert builds a match-insert.
func (m *MatchClause) Insert(stmts ...Statement) *InsertQuery {
	return &InsertQuery{match: m, stmts: stmts}
}

// Build renders the query.
func (q *InsertQuery) Build() (string, error) {
	if len(q.stmts) == 0 {
		return "", fmt.Errorf("%w: empty insert", ErrInvalid)
	}
	body, err := q.stmts.Render()
	if err != nil {
		return "", err
	}
	if q.match == nil {
		return "insert " + body, nil
	}
	m, err := q.match.render()
	if err != nil {
		return "", err
	}
	return m + " insert " + body, nil
}

// DeleteQuery is match …; delete $a, $b;
type DeleteQuery struct {
	match *MatchClause
	vars  []Var
}

// Delete removes the concepts bound to vars.
func (m *MatchClause) Delete(vars ...Var) *DeleteQuery {
	return &DeleteQuery{match: m, vars: vars}
}

// Build renders the query.
func (q *DeleteQuery) Build() (string, error) {
	if len(q.vars) == 0 {
		return "", fmt.Errorf("%w: delete without variables", ErrInvalid)
	}
	m, err := q.match.render()
	if err != nil {
		return "", err
	}
	vars, err := renderVars(q.vars)
	if err != nil {
		return "", err
	}
	return m + " delete " + vars + ";", nil
}

// MustBuild renders q and panics on error. Intended for tests and constant
// queries.
func MustBuild(q Query) string {
	s, err := q.Build()
	if err != nil {
		panic(err)
	}
	return s
}
