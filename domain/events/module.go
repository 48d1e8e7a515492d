package events

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	backend "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/internal/config"
)

// Module provides the events domain
var Module = fx.Module("events",
	fx.Provide(ProvideService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterLifecycle),
)

// ProvideService builds the service, publishing on Redis when enabled.
func ProvideService(cfg *config.Config, client backend.UniversalClient, log *slog.Logger) *Service {
	if !cfg.Events.RedisPublish {
		return NewService(log)
	}
	return NewService(log, WithRedis(client, cfg.Events.ChannelPrefix))
}

// RegisterRoutes registers the events routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	events := e.Group("/api/events")
	events.GET("/stream", h.HandleStream)
	events.GET("/connections/count", h.HandleConnectionsCount)
}

// LifecycleParams are the dependencies for lifecycle hooks
type LifecycleParams struct {
	fx.In

	LC      fx.Lifecycle
	Handler *Handler
	Log     *slog.Logger
}

// RegisterLifecycle registers lifecycle hooks for cleanup
func RegisterLifecycle(p LifecycleParams) {
	p.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Log.Info("stopping events handler")
			p.Handler.Stop()
			return nil
		},
	})
}
