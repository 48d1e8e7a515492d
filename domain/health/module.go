package health

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/domain/events"
	"github.com/emergent-company/emergent.graphcore/internal/attrcache"
	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/syshealth"
)

var Module = fx.Module("health",
	fx.Provide(
		ProvideMonitor,
		ProvideHandler,
		ProvideMetricsHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// ProvideMonitor starts the host pressure monitor with the app.
func ProvideMonitor(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) syshealth.Monitor {
	m := syshealth.NewMonitor(&cfg.SysHealth, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return m.Start() },
		OnStop:  func(context.Context) error { return m.Stop() },
	})
	return m
}

// ProvideHandler probes the graph session manager, and the attribute cache
// when it is enabled.
func ProvideHandler(graph *graphdb.Manager, cache *attrcache.Cache, host syshealth.Monitor, cfg *config.Config) *Handler {
	var cp Pinger
	if cache.Enabled() {
		cp = cache
	}
	return NewHandler(graph, cp, host, cfg)
}

// ProvideMetricsHandler creates the metrics handler.
func ProvideMetricsHandler(bus *events.Service) *MetricsHandler {
	return NewMetricsHandler(bus)
}
