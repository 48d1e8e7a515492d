// Package graphdbtest provides a scripted in-memory graphdb.Driver.
//
// Answers are registered against substrings of the query text; the most
// recently registered matching script wins. Every transaction and query is
// recorded so tests can assert on the exact text sent to the engine.
package graphdbtest

import (
	"context"
	"strings"
	"sync"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
)

type script struct {
	contains string
	rows     []graphdb.Row
	value    float64
	groups   []graphdb.Group
	err      error
	fn       func(query string) ([]graphdb.Row, error)
}

// Fake is a graphdb.Driver whose answers are scripted by the test.
type Fake struct {
	mu sync.Mutex

	// SessionErr fails Session while set.
	SessionErr error
	// TxErr fails every Transaction call while set.
	TxErr error
	// CommitErr fails every Commit while set.
	CommitErr error

	scripts      []script
	attributes   map[string][]graphdb.Concept
	explanations map[string][]graphdb.Explanation

	sessions     int
	closedCount  int
	transactions []*Tx
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		attributes:   map[string][]graphdb.Concept{},
		explanations: map[string][]graphdb.Explanation{},
	}
}

// OnQuery answers queries containing substr with rows.
func (f *Fake) OnQuery(substr string, rows ...graphdb.Row) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script{contains: substr, rows: rows})
	return f
}

// OnQueryFunc answers queries containing substr by calling fn.
func (f *Fake) OnQueryFunc(substr string, fn func(query string) ([]graphdb.Row, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script{contains: substr, fn: fn})
	return f
}

// OnAggregate answers aggregate queries containing substr with v.
func (f *Fake) OnAggregate(substr string, v float64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script{contains: substr, value: v})
	return f
}

// OnGroup answers group queries containing substr with groups.
func (f *Fake) OnGroup(substr string, groups ...graphdb.Group) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script{contains: substr, groups: groups})
	return f
}

// OnError fails any query containing substr with err.
func (f *Fake) OnError(substr string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script{contains: substr, err: err})
	return f
}

// SetAttributes sets the attribute concepts owned by iid.
func (f *Fake) SetAttributes(iid string, attrs ...graphdb.Concept) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attributes[iid] = attrs
	return f
}

// SetExplanation sets the sub-inferences returned for an explainable id.
func (f *Fake) SetExplanation(explainable string, ex ...graphdb.Explanation) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.explanations[explainable] = ex
	return f
}

func (f *Fake) match(query string) (script, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.scripts) - 1; i >= 0; i-- {
		if strings.Contains(query, f.scripts[i].contains) {
			return f.scripts[i], true
		}
	}
	return script{}, false
}

// Sessions returns how many sessions were opened.
func (f *Fake) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// ClosedSessions returns how many sessions were closed.
func (f *Fake) ClosedSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedCount
}

// Transactions returns every transaction opened so far, in order.
func (f *Fake) Transactions() []*Tx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Tx(nil), f.transactions...)
}

// Queries returns every query run on any transaction, in order of execution.
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, tx := range f.transactions {
		out = append(out, tx.queries...)
	}
	return out
}

// Session implements graphdb.Driver.
func (f *Fake) Session(ctx context.Context, database string) (graphdb.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	f.sessions++
	return &session{fake: f, database: database}, nil
}

type session struct {
	fake     *Fake
	database string
}

func (s *session) Transaction(ctx context.Context, typ graphdb.TxType, opts graphdb.TxOptions) (graphdb.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := s.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TxErr != nil {
		return nil, f.TxErr
	}
	tx := &Tx{fake: f, typ: typ, Options: opts}
	f.transactions = append(f.transactions, tx)
	return tx, nil
}

func (s *session) Close(context.Context) error {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	s.fake.closedCount++
	return nil
}

// Tx is a recorded fake transaction.
type Tx struct {
	fake    *Fake
	typ     graphdb.TxType
	Options graphdb.TxOptions

	mu        sync.Mutex
	queries   []string
	committed int
	closed    int
}

func (t *Tx) Type() graphdb.TxType { return t.typ }

// Queries returns the queries run on this transaction.
func (t *Tx) Queries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.queries...)
}

// Commits returns how many times Commit reached the engine.
func (t *Tx) Commits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// Closes returns how many times Close reached the engine.
func (t *Tx) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Done reports whether the transaction was committed or closed.
func (t *Tx) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed > 0 || t.closed > 0
}

func (t *Tx) record(ctx context.Context, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed > 0 || t.closed > 0 {
		return graphdb.ErrTxClosed
	}
	t.queries = append(t.queries, query)
	return nil
}

func (t *Tx) Query(ctx context.Context, query string) ([]graphdb.Row, error) {
	if err := t.record(ctx, query); err != nil {
		return nil, err
	}
	s, ok := t.fake.match(query)
	if !ok {
		return nil, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.fn != nil {
		return s.fn(query)
	}
	return s.rows, nil
}

func (t *Tx) Aggregate(ctx context.Context, query string) (float64, error) {
	if err := t.record(ctx, query); err != nil {
		return 0, err
	}
	s, ok := t.fake.match(query)
	if !ok {
		return 0, nil
	}
	return s.value, s.err
}

func (t *Tx) Group(ctx context.Context, query string) ([]graphdb.Group, error) {
	if err := t.record(ctx, query); err != nil {
		return nil, err
	}
	s, ok := t.fake.match(query)
	if !ok {
		return nil, nil
	}
	return s.groups, s.err
}

func (t *Tx) Attributes(ctx context.Context, iid string) ([]graphdb.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	return append([]graphdb.Concept(nil), t.fake.attributes[iid]...), nil
}

func (t *Tx) Explain(ctx context.Context, explainable string) ([]graphdb.Explanation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	return append([]graphdb.Explanation(nil), t.fake.explanations[explainable]...), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.fake.mu.Lock()
	commitErr := t.fake.CommitErr
	t.fake.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed > 0 || t.closed > 0 {
		return graphdb.ErrTxClosed
	}
	if commitErr != nil {
		t.closed++
		return commitErr
	}
	t.committed++
	return nil
}

func (t *Tx) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed > 0 {
		return nil
	}
	t.closed++
	return nil
}

// Concept helpers for building answers.

// Entity returns an entity concept.
func Entity(iid, typ, supertype string) graphdb.Concept {
	return graphdb.Concept{IID: iid, BaseType: graphdb.BaseEntity, Type: typ, Supertype: supertype}
}

// Relation returns a relation concept.
func Relation(iid, typ, supertype string, inferred bool) graphdb.Concept {
	return graphdb.Concept{IID: iid, BaseType: graphdb.BaseRelation, Type: typ, Supertype: supertype, Inferred: inferred}
}

// Attribute returns an attribute concept.
func Attribute(iid, typ, valueType string, value any) graphdb.Concept {
	return graphdb.Concept{IID: iid, BaseType: graphdb.BaseAttribute, Type: typ, Supertype: "attribute", ValueType: valueType, Value: value}
}

// Row builds a row from alternating variable names and concepts.
func Row(pairs ...any) graphdb.Row {
	r := graphdb.Row{Concepts: map[string]graphdb.Concept{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Concepts[pairs[i].(string)] = pairs[i+1].(graphdb.Concept)
	}
	return r
}
