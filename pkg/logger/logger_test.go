package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
	}{
		{"basic scope", "graph"},
		{"nested scope", "graph.store.pagination"},
		{"empty scope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Scope(tt.scope)
			assert.Equal(t, "scope", attr.Key)
			assert.Equal(t, tt.scope, attr.Value.String())
		})
	}
}

func TestError(t *testing.T) {
	errs := []error{
		errors.New("engine unavailable"),
		nil,
		errors.Join(errors.New("outer"), errors.New("inner")),
	}

	for _, err := range errs {
		attr := Error(err)
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, err, attr.Value.Any())
	}
}

func TestQuery(t *testing.T) {
	attr := Query("match $x isa thing; get;")
	assert.Equal(t, "query", attr.Key)
	assert.Equal(t, "match $x isa thing; get;", attr.Value.String())
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled *slog.Level
	}{
		{level: "", enabled: slog.LevelInfo, disabled: ptr(slog.LevelDebug)},
		{level: "debug", enabled: slog.LevelDebug},
		{level: "DeBuG", enabled: slog.LevelDebug},
		{level: "warn", enabled: slog.LevelWarn, disabled: ptr(slog.LevelInfo)},
		{level: "warning", enabled: slog.LevelWarn, disabled: ptr(slog.LevelInfo)},
		{level: "error", enabled: slog.LevelError, disabled: ptr(slog.LevelWarn)},
		{level: "bogus", enabled: slog.LevelInfo, disabled: ptr(slog.LevelDebug)},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run("level="+tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("GO_ENV", "")

			log := NewLogger()
			assert.True(t, log.Enabled(ctx, tt.enabled))
			if tt.disabled != nil {
				assert.False(t, log.Enabled(ctx, *tt.disabled))
			}
		})
	}
}

func TestNewLogger_ProductionJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GO_ENV", "production")

	log := NewLogger()
	_, isJSON := log.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
}

func ptr(l slog.Level) *slog.Level { return &l }
