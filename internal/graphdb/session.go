package graphdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// Manager owns the process-wide session. The session is created once,
// either eagerly by Start or by the first caller of Session; concurrent
// first callers wait on the same creation.
type Manager struct {
	driver   Driver
	database string
	log      *slog.Logger

	mu      sync.Mutex
	session Session
}

// NewManager creates a session manager for the configured database
func NewManager(driver Driver, cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		driver:   driver,
		database: cfg.Graph.Database,
		log:      log.With(logger.Scope("graphdb.session")),
	}
}

// Session returns the shared session, creating it on first use. A failed
// creation is not cached; the next caller tries again.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session, nil
	}
	s, err := m.driver.Session(ctx, m.database)
	if err != nil {
		return nil, fmt.Errorf("open session on %q: %w", m.database, err)
	}
	m.session = s
	m.log.Info("graph session opened", slog.String("database", m.database))
	return s, nil
}

// Start opens the session eagerly.
func (m *Manager) Start(ctx context.Context) error {
	_, err := m.Session(ctx)
	return err
}

// Transaction opens a transaction on the shared session. When the engine
// reports the session as expired, the session is reopened once.
func (m *Manager) Transaction(ctx context.Context, typ TxType, opts TxOptions) (Transaction, error) {
	s, err := m.Session(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.Transaction(ctx, typ, opts)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrSessionExpired) {
		return nil, fmt.Errorf("open %s transaction: %w", typ, err)
	}

	m.log.Warn("graph session expired, reopening", logger.Error(err))
	m.invalidate(s)
	if s, err = m.Session(ctx); err != nil {
		return nil, err
	}
	tx, err = s.Transaction(ctx, typ, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s transaction: %w", typ, err)
	}
	return tx, nil
}

// invalidate drops s if it is still the cached session.
func (m *Manager) invalidate(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == s {
		m.session = nil
	}
}

// Ping opens and closes a read transaction.
func (m *Manager) Ping(ctx context.Context) error {
	tx, err := m.Transaction(ctx, Read, TxOptions{})
	if err != nil {
		return err
	}
	return tx.Close(ctx)
}

// Close releases the session. The manager can be reused afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	m.log.Info("closing graph session")
	return s.Close(ctx)
}

// SafeTx wraps a Transaction so that Close is harmless after Commit and
// Commit happens at most once.
//
//	tx := graphdb.NewSafeTx(raw)
//	defer tx.Close(ctx)
//	// ... queries ...
//	return tx.Commit(ctx)
type SafeTx struct {
	Transaction
	committed bool
}

// NewSafeTx wraps tx.
func NewSafeTx(tx Transaction) *SafeTx {
	return &SafeTx{Transaction: tx}
}

// Commit commits once; later calls are no-ops.
func (tx *SafeTx) Commit(ctx context.Context) error {
	if tx.committed {
		return nil
	}
	err := tx.Transaction.Commit(ctx)
	if err == nil {
		tx.committed = true
	}
	return err
}

// Committed reports whether Commit succeeded.
func (tx *SafeTx) Committed() bool { return tx.committed }

// Close discards the transaction unless it was committed.
func (tx *SafeTx) Close(ctx context.Context) error {
	if tx.committed {
		return nil
	}
	return tx.Transaction.Close(ctx)
}
