package attrcache

import (
	"context"
	"log/slog"

	backend "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

var Module = fx.Module("attrcache",
	fx.Provide(
		NewRedisClient,
		NewCache,
	),
)

// NewRedisClient creates the shared Redis client used by the attribute cache
// and the notification bus. The client connects lazily.
func NewRedisClient(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) backend.UniversalClient {
	log = log.With(logger.Scope("redis"))
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing redis client")
			return client.Close()
		},
	})
	return client
}

// NewCache creates the attribute cache, disabled unless ATTR_CACHE_ENABLED.
func NewCache(client backend.UniversalClient, cfg *config.Config, log *slog.Logger) *Cache {
	log = log.With(logger.Scope("attrcache"))
	if !cfg.Cache.Enabled {
		log.Info("attribute cache disabled")
		return NewFromClient(nil)
	}
	log.Info("attribute cache enabled",
		slog.String("addr", cfg.Cache.Addr),
		slog.String("prefix", cfg.Cache.Prefix),
	)
	return NewFromClient(client, WithPrefix(cfg.Cache.Prefix))
}
