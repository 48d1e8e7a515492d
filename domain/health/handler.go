package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/internal/version"
	"github.com/emergent-company/emergent.graphcore/pkg/syshealth"
)

const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	graph   Pinger
	cache   Pinger // nil when the attribute cache is disabled
	host    syshealth.Monitor
	cfg     *config.Config
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(graph Pinger, cache Pinger, host syshealth.Monitor, cfg *config.Config) *Handler {
	return &Handler{
		graph:   graph,
		cache:   cache,
		host:    host,
		cfg:     cfg,
		startAt: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func probe(ctx context.Context, p Pinger) Check {
	if err := p.Ping(ctx); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy"}
}

func hostCheck(m *syshealth.HealthMetrics) Check {
	switch {
	case m.Stale:
		return Check{Status: "unknown", Message: "host metrics are stale"}
	case m.Zone == syshealth.HealthZoneCritical:
		return Check{Status: "unhealthy", Message: fmt.Sprintf("host pressure critical (score %d)", m.Score)}
	}
	return Check{Status: "healthy"}
}

// Health returns the overall service health. The graph engine decides the
// overall status; a failing cache or critical host pressure only degrades it.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	checks := map[string]Check{"graph_engine": probe(ctx, h.graph)}
	if h.cache != nil {
		checks["attribute_cache"] = probe(ctx, h.cache)
	}
	if h.host != nil {
		checks["host"] = hostCheck(h.host.GetHealth())
	}

	overallStatus := "healthy"
	switch {
	case checks["graph_engine"].Status == "unhealthy":
		overallStatus = "unhealthy"
	case checks["attribute_cache"].Status == "unhealthy", checks["host"].Status == "unhealthy":
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Version,
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, response)
}

// Healthz returns a simple health check (for k8s liveness probe)
// GET /healthz
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (for k8s readiness probe)
// GET /ready
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	if err := h.graph.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Graph engine unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// Debug returns debug information (only outside production)
// GET /debug
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var host any
	if h.host != nil {
		host = h.host.GetHealth()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"host":        host,
		"environment": h.cfg.Environment,
		"debug":       h.cfg.Debug,
		"version":     version.Info(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"graph": map[string]any{
			"url":        h.cfg.Graph.BaseURL(),
			"database":   h.cfg.Graph.Database,
			"infer":      h.cfg.Graph.Infer,
			"page_size":  h.cfg.Graph.PageSize,
			"tx_timeout": h.cfg.Graph.TxTimeout.String(),
		},
		"attribute_cache": map[string]any{
			"enabled": h.cfg.Cache.Enabled,
			"addr":    h.cfg.Cache.Addr,
		},
	})
}
