// Package graphdb is the connection to the graph engine: a driver that opens
// sessions, sessions that open typed transactions, and transactions that run
// pattern queries and expose concept attributes and reasoning explanations.
//
// The production driver is Client, which talks to the engine's HTTP gateway.
// Tests use graphdbtest.Fake.
package graphdb

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSyntax means the engine rejected the query text.
	ErrSyntax = errors.New("graphdb: query syntax error")
	// ErrTxClosed means the transaction was already committed or closed.
	ErrTxClosed = errors.New("graphdb: transaction closed")
	// ErrSessionExpired means the engine no longer knows the session.
	ErrSessionExpired = errors.New("graphdb: session expired")
	// ErrUnavailable means the engine could not be reached.
	ErrUnavailable = errors.New("graphdb: engine unavailable")
)

// TxType is the access mode of a transaction.
type TxType int

const (
	Read TxType = iota
	Write
)

func (t TxType) String() string {
	switch t {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("TxType(%d)", int(t))
	}
}

// TxOptions configures a transaction.
type TxOptions struct {
	// Infer enables rule evaluation for every query in the transaction.
	Infer bool
}

// BaseType is the metatype of a concept.
type BaseType string

const (
	BaseEntity    BaseType = "ENTITY"
	BaseRelation  BaseType = "RELATION"
	BaseAttribute BaseType = "ATTRIBUTE"
	BaseSchema    BaseType = "TYPE"
)

// Concept is a handle on a node or edge returned in an answer. It is only
// meaningful inside the transaction that produced it.
type Concept struct {
	IID       string   `json:"iid"`
	BaseType  BaseType `json:"base_type"`
	Type      string   `json:"type"`
	Supertype string   `json:"supertype,omitempty"`
	ValueType string   `json:"value_type,omitempty"`
	Value     any      `json:"value,omitempty"`
	Inferred  bool     `json:"inferred,omitempty"`
}

func (c Concept) IsEntity() bool    { return c.BaseType == BaseEntity }
func (c Concept) IsRelation() bool  { return c.BaseType == BaseRelation }
func (c Concept) IsAttribute() bool { return c.BaseType == BaseAttribute }

// IsThing reports whether c is a data instance rather than a schema type.
func (c Concept) IsThing() bool {
	return c.IsEntity() || c.IsRelation() || c.IsAttribute()
}

// Row is one answer of a get query: variable name (without $) to concept.
type Row struct {
	Concepts map[string]Concept `json:"concepts"`
	// Explainables maps the variables bound to inferred concepts to the id
	// used with Transaction.Explain.
	Explainables map[string]string `json:"explainables,omitempty"`
}

// Get returns the concept bound to v.
func (r Row) Get(v string) (Concept, bool) {
	c, ok := r.Concepts[v]
	return c, ok
}

// Group is one answer of a group aggregate query.
type Group struct {
	Owner Concept `json:"owner"`
	Value float64 `json:"value"`
}

// Explanation is one sub-inference behind an inferred answer.
type Explanation struct {
	// Pattern is the sub-inference's query pattern as the reasoner emits it.
	Pattern string `json:"pattern"`
	// Rule names the rule that fired, empty for a lookup of stored data.
	Rule string `json:"rule,omitempty"`
}

// Driver opens sessions against a database.
type Driver interface {
	Session(ctx context.Context, database string) (Session, error)
}

// Session opens transactions. It is safe for concurrent use.
type Session interface {
	Transaction(ctx context.Context, typ TxType, opts TxOptions) (Transaction, error)
	Close(ctx context.Context) error
}

// Transaction is owned by a single logical operation and is not safe for
// concurrent use.
type Transaction interface {
	Type() TxType
	// Query runs a get, insert or delete query and returns its answer rows.
	Query(ctx context.Context, query string) ([]Row, error)
	// Aggregate runs a get query ending in an aggregate and returns its number.
	Aggregate(ctx context.Context, query string) (float64, error)
	// Group runs a group aggregate query.
	Group(ctx context.Context, query string) ([]Group, error)
	// Attributes lists the attribute concepts owned by the thing iid.
	Attributes(ctx context.Context, iid string) ([]Concept, error)
	// Explain returns the sub-inferences behind an explainable answer.
	Explain(ctx context.Context, explainable string) ([]Explanation, error)
	// Commit persists a write transaction and closes it.
	Commit(ctx context.Context) error
	// Close discards the transaction. Closing twice, or after Commit, is a no-op.
	Close(ctx context.Context) error
}
