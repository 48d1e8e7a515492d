package graphdb

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

var Module = fx.Module("graphdb",
	fx.Provide(
		NewClient,
		func(c *Client) Driver { return c },
		NewManager,
		newKeepalive,
	),
	fx.Invoke(RegisterSessionLifecycle, RegisterKeepaliveLifecycle),
)

func newKeepalive(m *Manager, cfg *config.Config, log *slog.Logger) *Keepalive {
	timeout := cfg.Graph.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewKeepalive(m, cfg.Graph.KeepaliveInterval, timeout, log)
}

// RegisterSessionLifecycle opens the session at startup and closes it on stop.
// A startup failure is logged rather than fatal: the first request retries,
// and readiness reports the engine as down until then.
func RegisterSessionLifecycle(lc fx.Lifecycle, m *Manager, log *slog.Logger) {
	log = log.With(logger.Scope("graphdb"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.Start(ctx); err != nil {
				log.Warn("graph session not available at startup", logger.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return m.Close(ctx)
		},
	})
}

// RegisterKeepaliveLifecycle schedules session pings for the lifetime of the app.
func RegisterKeepaliveLifecycle(lc fx.Lifecycle, k *Keepalive) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return k.Start() },
		OnStop:  k.Stop,
	})
}
