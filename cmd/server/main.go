// Package main provides the entry point for the graph query and transaction
// service.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/emergent.graphcore/domain/events"
	"github.com/emergent-company/emergent.graphcore/domain/graph"
	"github.com/emergent-company/emergent.graphcore/domain/health"
	"github.com/emergent-company/emergent.graphcore/domain/schema"
	"github.com/emergent-company/emergent.graphcore/domain/tracing"
	"github.com/emergent-company/emergent.graphcore/internal/attrcache"
	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/internal/server"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

func main() {
	// Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		server.Module,
		tracing.Module,
		graphdb.Module,
		attrcache.Module,

		// Domain modules
		schema.Module,
		events.Module,
		graph.Module,
		health.Module,
	).Run()
}
