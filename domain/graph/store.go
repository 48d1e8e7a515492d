package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/emergent-company/emergent.graphcore/domain/schema"
	"github.com/emergent-company/emergent.graphcore/internal/attrcache"
	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// TxOpener opens transactions on the shared session.
type TxOpener interface {
	Transaction(ctx context.Context, typ graphdb.TxType, opts graphdb.TxOptions) (graphdb.Transaction, error)
}

// AttributeCache is the read-through attribute cache. Get returns nil on a
// miss.
type AttributeCache interface {
	Get(ctx context.Context, family, id string) (map[string]any, error)
}

// Store is the graph query and transaction layer: executor, pagination,
// mutation and aggregation all hang off it.
type Store struct {
	db       TxOpener
	schema   *schema.Registry
	cache    AttributeCache
	rewriter InferenceRewriter
	log      *slog.Logger

	txTimeout time.Duration
	infer     bool
	pageSize  int
	now       func() time.Time
	newID     func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRewriter replaces the inference pattern rewriter.
func WithRewriter(rw InferenceRewriter) StoreOption {
	return func(s *Store) { s.rewriter = rw }
}

// WithTxTimeout bounds every transaction scope.
func WithTxTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.txTimeout = d }
}

// WithInferDefault sets the reasoning default for reads.
func WithInferDefault(infer bool) StoreOption {
	return func(s *Store) { s.infer = infer }
}

// WithPageSize sets the default page size.
func WithPageSize(n int) StoreOption {
	return func(s *Store) { s.pageSize = n }
}

// WithIDGenerator replaces the uuid generator used for new keys.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates a Store. cache may be nil.
func NewStore(db TxOpener, reg *schema.Registry, cache AttributeCache, log *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		db:        db,
		schema:    reg,
		cache:     cache,
		rewriter:  NewGraqlRewriter(),
		log:       log.With(logger.Scope("graph.store")),
		txTimeout: 30 * time.Second,
		pageSize:  200,
		now:       time.Now,
		newID:     newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvideStore builds the Store from application config.
func ProvideStore(db *graphdb.Manager, reg *schema.Registry, cache *attrcache.Cache, cfg *config.Config, log *slog.Logger) *Store {
	var c AttributeCache
	if cache.Enabled() {
		c = cache
	}
	return NewStore(db, reg, c, log,
		WithTxTimeout(cfg.Graph.TxTimeout),
		WithInferDefault(cfg.Graph.Infer),
		WithPageSize(cfg.Graph.PageSize),
	)
}

// Schema returns the descriptor registry.
func (s *Store) Schema() *schema.Registry { return s.schema }
