package health

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SubscriberCounter reports live notification stream subscribers.
type SubscriberCounter interface {
	GetTotalSubscriberCount() int
}

// MetricsHandler exposes Prometheus metrics and a JSON summary of runtime
// counters.
type MetricsHandler struct {
	prom   http.Handler
	events SubscriberCounter
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(events SubscriberCounter) *MetricsHandler {
	return &MetricsHandler{
		prom:   promhttp.Handler(),
		events: events,
	}
}

// Prometheus serves the default registry in exposition format.
// GET /metrics
func (h *MetricsHandler) Prometheus(c echo.Context) error {
	h.prom.ServeHTTP(c.Response(), c.Request())
	return nil
}

// SummaryResponse is the JSON metrics summary.
type SummaryResponse struct {
	EventSubscribers int    `json:"event_subscribers"`
	Timestamp        string `json:"timestamp"`
}

// Summary returns counters that are not part of the Prometheus registry.
// GET /api/metrics/summary
func (h *MetricsHandler) Summary(c echo.Context) error {
	return c.JSON(http.StatusOK, SummaryResponse{
		EventSubscribers: h.events.GetTotalSubscriberCount(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
}
