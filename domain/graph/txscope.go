package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
	"github.com/emergent-company/emergent.graphcore/pkg/tracing"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

const closeTimeout = 5 * time.Second

// loud reports whether err must reach the caller even from a read scope:
// contract errors, caller cancellation, and errors already shaped for HTTP.
func loud(err error) bool {
	var appErr *apperror.Error
	return errors.Is(err, ErrMalformedQuery) ||
		errors.Is(err, typeql.ErrInvalid) ||
		errors.Is(err, graphdb.ErrSyntax) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &appErr)
}

// contract reports whether err is a query-shape error that write scopes
// pass through unchanged.
func contract(err error) bool {
	var appErr *apperror.Error
	return errors.Is(err, ErrMalformedQuery) ||
		errors.Is(err, typeql.ErrInvalid) ||
		errors.Is(err, graphdb.ErrSyntax) ||
		errors.As(err, &appErr)
}

func (s *Store) closeTx(ctx context.Context, tx graphdb.Transaction, op string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := tx.Close(cctx); err != nil {
		s.log.Warn("close transaction failed", slog.String("op", op), logger.Error(err))
	}
}

func startScope(ctx context.Context, op, mode string) (context.Context, trace.Span) {
	return tracing.Start(ctx, "graph."+op,
		attribute.String("graph.op", op),
		attribute.String("graph.tx", mode),
	)
}

// readTx runs fn in a read transaction. The transaction is always closed.
// Failures degrade to the zero value of T with a nil error unless loud.
func readTx[T any](ctx context.Context, s *Store, op string, infer bool, fn func(context.Context, graphdb.Transaction) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	ctx, span := startScope(ctx, op, "read")
	defer span.End()

	out, err := func() (T, error) {
		tx, err := s.db.Transaction(ctx, graphdb.Read, graphdb.TxOptions{Infer: infer})
		if err != nil {
			return zero, err
		}
		defer s.closeTx(ctx, tx, op)
		return fn(ctx, tx)
	}()
	if err == nil {
		txDuration.WithLabelValues(op, "read", "ok").Observe(time.Since(start).Seconds())
		return out, nil
	}

	if loud(err) {
		tracing.Fail(span, err)
		txDuration.WithLabelValues(op, "read", "error").Observe(time.Since(start).Seconds())
		return zero, err
	}

	tracing.Degraded(span, err)
	degradedReads.WithLabelValues(op).Inc()
	txDuration.WithLabelValues(op, "read", "degraded").Observe(time.Since(start).Seconds())
	s.log.Warn("read degraded to empty result", slog.String("op", op), logger.Error(err))
	return zero, nil
}

// writeTx runs fn in a write transaction and commits it at most once on
// success. Engine failures surface as apperror.ErrUnknown.
func writeTx[T any](ctx context.Context, s *Store, op string, fn func(context.Context, graphdb.Transaction) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	ctx, span := startScope(ctx, op, "write")
	defer span.End()

	out, err := func() (T, error) {
		raw, err := s.db.Transaction(ctx, graphdb.Write, graphdb.TxOptions{})
		if err != nil {
			return zero, err
		}
		tx := graphdb.NewSafeTx(raw)
		defer s.closeTx(ctx, tx, op)

		out, err := fn(ctx, tx)
		if err != nil {
			return zero, err
		}
		if err := tx.Commit(ctx); err != nil {
			return zero, err
		}
		return out, nil
	}()
	if err == nil {
		txDuration.WithLabelValues(op, "write", "ok").Observe(time.Since(start).Seconds())
		return out, nil
	}

	tracing.Fail(span, err)
	txDuration.WithLabelValues(op, "write", "error").Observe(time.Since(start).Seconds())
	if contract(err) {
		return zero, err
	}
	s.log.Error("write transaction failed", slog.String("op", op), logger.Error(err))
	return zero, apperror.NewUnknown(err)
}
