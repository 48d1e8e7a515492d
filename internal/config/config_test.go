package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGraphConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		config   GraphConfig
		expected string
	}{
		{
			name:     "defaults to http",
			config:   GraphConfig{Host: "localhost", Port: 48555},
			expected: "http://localhost:48555",
		},
		{
			name:     "https",
			config:   GraphConfig{Scheme: "https", Host: "graph.example.com", Port: 443},
			expected: "https://graph.example.com:443",
		},
		{
			name:     "ipv6 host",
			config:   GraphConfig{Host: "::1", Port: 48555},
			expected: "http://[::1]:48555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.BaseURL())
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.ServerPort)
	assert.Equal(t, "grakn", cfg.Graph.Database)
	assert.Equal(t, 30*time.Second, cfg.Graph.TxTimeout)
	assert.Equal(t, 200, cfg.Graph.PageSize)
	assert.False(t, cfg.Graph.Infer)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "graphcore:attrs", cfg.Cache.Prefix)
	assert.Equal(t, "graphcore", cfg.Events.ChannelPrefix)
	assert.Empty(t, cfg.Schema.Path)
	assert.False(t, cfg.Otel.Enabled())
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("GRAPH_HOST", "graph")
	t.Setenv("GRAPH_PORT", "9000")
	t.Setenv("GRAPH_TX_TIMEOUT", "5s")
	t.Setenv("GRAPH_INFER", "true")
	t.Setenv("ATTR_CACHE_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := NewConfig(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "http://graph:9000", cfg.Graph.BaseURL())
	assert.Equal(t, 5*time.Second, cfg.Graph.TxTimeout)
	assert.True(t, cfg.Graph.Infer)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 3, cfg.Cache.DB)
	assert.True(t, cfg.Otel.Enabled())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unparseable port", "GRAPH_PORT", "abc"},
		{"zero page size", "GRAPH_PAGE_SIZE", "0"},
		{"zero tx timeout", "GRAPH_TX_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := NewConfig(discardLogger())
			assert.Error(t, err)
		})
	}
}
