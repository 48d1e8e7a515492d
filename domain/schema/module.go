package schema

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// Module provides the schema descriptor registry
var Module = fx.Module("schema",
	fx.Provide(NewRegistry),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

// NewRegistry loads SCHEMA_PATH when set, the embedded descriptors otherwise.
func NewRegistry(cfg *config.Config, log *slog.Logger) (*Registry, error) {
	log = log.With(logger.Scope("schema"))
	if cfg.Schema.Path == "" {
		reg := Default()
		log.Info("schema descriptors loaded",
			slog.String("source", "embedded"),
			slog.Int("types", len(reg.types)),
			slog.Int("relations", len(reg.relations)),
		)
		return reg, nil
	}

	reg, err := LoadFile(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}
	log.Info("schema descriptors loaded",
		slog.String("source", cfg.Schema.Path),
		slog.Int("types", len(reg.types)),
		slog.Int("relations", len(reg.relations)),
	)
	return reg, nil
}
