package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"

	"github.com/emergent-company/emergent.graphcore/pkg/syshealth"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"4000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Graph engine gateway
	Graph GraphConfig

	// Redis-backed attribute cache
	Cache CacheConfig

	// Notification bus
	Events EventsConfig

	// Schema descriptors
	Schema SchemaConfig

	// OpenTelemetry
	Otel OtelConfig

	// Host pressure monitor thresholds
	SysHealth syshealth.Config

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// GraphConfig holds graph engine connection settings
type GraphConfig struct {
	Scheme   string `env:"GRAPH_SCHEME" envDefault:"http"`
	Host     string `env:"GRAPH_HOST" envDefault:"localhost"`
	Port     int    `env:"GRAPH_PORT" envDefault:"48555"`
	Database string `env:"GRAPH_DATABASE" envDefault:"grakn"`

	// TxTimeout bounds every read or write transaction scope.
	TxTimeout time.Duration `env:"GRAPH_TX_TIMEOUT" envDefault:"30s"`
	// RequestTimeout bounds a single gateway round trip.
	RequestTimeout time.Duration `env:"GRAPH_REQUEST_TIMEOUT" envDefault:"60s"`

	// Infer is the reasoning default for read queries that don't set it.
	Infer    bool `env:"GRAPH_INFER" envDefault:"false"`
	PageSize int  `env:"GRAPH_PAGE_SIZE" envDefault:"200"`

	// KeepaliveInterval spaces session pings. Zero disables them.
	KeepaliveInterval time.Duration `env:"GRAPH_KEEPALIVE_INTERVAL" envDefault:"60s"`
}

// BaseURL returns the gateway root URL
func (g *GraphConfig) BaseURL() string {
	scheme := g.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(g.Host, strconv.Itoa(g.Port)))
}

// CacheConfig holds the attribute cache settings
type CacheConfig struct {
	Enabled  bool   `env:"ATTR_CACHE_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"ATTR_CACHE_PREFIX" envDefault:"graphcore:attrs"`
}

// EventsConfig holds notification bus settings
type EventsConfig struct {
	// RedisPublish mirrors every notification to Redis PUBLISH.
	// Uses the cache's Redis connection settings.
	RedisPublish  bool   `env:"EVENTS_REDIS_PUBLISH" envDefault:"false"`
	ChannelPrefix string `env:"EVENTS_CHANNEL_PREFIX" envDefault:"graphcore"`
}

// SchemaConfig points at an optional schema descriptor file
type SchemaConfig struct {
	// Path overrides the embedded default descriptors when set.
	Path string `env:"SCHEMA_PATH" envDefault:""`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Graph.PageSize <= 0 {
		return nil, fmt.Errorf("GRAPH_PAGE_SIZE must be positive, got %d", cfg.Graph.PageSize)
	}
	if cfg.Graph.TxTimeout <= 0 {
		return nil, fmt.Errorf("GRAPH_TX_TIMEOUT must be positive, got %s", cfg.Graph.TxTimeout)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("graph_url", cfg.Graph.BaseURL()),
		slog.String("graph_database", cfg.Graph.Database),
		slog.Bool("attr_cache", cfg.Cache.Enabled),
	)

	return cfg, nil
}
