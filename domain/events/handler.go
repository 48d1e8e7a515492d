package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
	"github.com/emergent-company/emergent.graphcore/pkg/sse"
)

const (
	// HeartbeatInterval is how often to send heartbeat events
	HeartbeatInterval = 30 * time.Second
)

// Handler handles SSE connections for real-time events
type Handler struct {
	svc         *Service
	log         *slog.Logger
	connections map[string]*SSEConnection
	connMu      sync.RWMutex

	// Heartbeat management
	heartbeatCtx    context.Context
	heartbeatCancel context.CancelFunc
}

// NewHandler creates a new events handler
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handler{
		svc:             svc,
		log:             log.With(logger.Scope("events.handler")),
		connections:     make(map[string]*SSEConnection),
		heartbeatCtx:    ctx,
		heartbeatCancel: cancel,
	}

	// Start heartbeat goroutine
	go h.heartbeatLoop()

	return h
}

// Stop stops the handler and cleans up resources
func (h *Handler) Stop() {
	h.heartbeatCancel()

	// Close all connections
	h.connMu.Lock()
	defer h.connMu.Unlock()

	for connID, conn := range h.connections {
		close(conn.Done)
		conn.Stream.Close()
		delete(h.connections, connID)
	}
}

// heartbeatLoop sends periodic heartbeats to all connections
func (h *Handler) heartbeatLoop() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.heartbeatCtx.Done():
			return
		case <-ticker.C:
			h.sendHeartbeats()
		}
	}
}

// sendHeartbeats sends a heartbeat to all active connections
func (h *Handler) sendHeartbeats() {
	h.connMu.RLock()
	connections := make([]*SSEConnection, 0, len(h.connections))
	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	h.connMu.RUnlock()

	if len(connections) == 0 {
		return
	}

	now := time.Now().UTC()
	heartbeat := HeartbeatEvent{Timestamp: now.Format(time.RFC3339)}

	for _, conn := range connections {
		select {
		case <-conn.Done:
			continue
		default:
			if err := h.sendEvent(conn, "", "heartbeat", heartbeat); err != nil {
				h.log.Warn("failed to send heartbeat",
					slog.String("connection_id", conn.ConnectionID),
					logger.Error(err),
				)
				// Remove failed connection
				h.removeConnection(conn.ConnectionID)
			} else {
				conn.LastHeartbeat = now
			}
		}
	}
}

// HandleStream handles GET /api/events/stream. ?topic= narrows the stream
// to one topic; without it every notification is sent.
func (h *Handler) HandleStream(c echo.Context) error {
	topic := Topic(c.QueryParam("topic"))
	if topic == "" {
		topic = allTopics
	}

	connectionID := h.generateConnectionID()

	stream := sse.NewWriter(c.Response().Writer)
	if err := stream.Start(); err != nil {
		if errors.Is(err, sse.ErrStreamingUnsupported) {
			return apperror.ErrInternal.WithMessage("streaming not supported")
		}
		return err
	}

	conn := &SSEConnection{
		ConnectionID:  connectionID,
		Topic:         topic,
		Stream:        stream,
		Done:          make(chan struct{}),
		LastHeartbeat: time.Now(),
	}

	h.connMu.Lock()
	h.connections[connectionID] = conn
	h.connMu.Unlock()

	defer h.removeConnection(connectionID)

	h.log.Info("SSE connection established",
		slog.String("connection_id", connectionID),
		slog.String("topic", string(topic)),
	)

	if err := h.sendEvent(conn, "", "connected", ConnectedEvent{ConnectionID: connectionID, Topic: topic}); err != nil {
		h.log.Error("failed to send connected event", logger.Error(err))
		return nil
	}

	unsubscribe := h.svc.Subscribe(topic, func(n Notification) {
		select {
		case <-conn.Done:
			return
		default:
			if err := h.sendEvent(conn, n.ID, string(n.Topic), n); err != nil {
				h.log.Warn("failed to send event to connection",
					slog.String("connection_id", connectionID),
					logger.Error(err),
				)
			}
		}
	})
	defer unsubscribe()

	ctx := c.Request().Context()
	select {
	case <-ctx.Done():
		h.log.Info("SSE connection closed (client disconnected)",
			slog.String("connection_id", connectionID),
		)
	case <-conn.Done:
		h.log.Info("SSE connection closed (server closed)",
			slog.String("connection_id", connectionID),
		)
	}

	return nil
}

// HandleConnectionsCount handles GET /api/events/connections/count
func (h *Handler) HandleConnectionsCount(c echo.Context) error {
	h.connMu.RLock()
	count := len(h.connections)
	h.connMu.RUnlock()

	return c.JSON(http.StatusOK, map[string]int{
		"count": count,
	})
}

// sendEvent sends an SSE event to a connection
func (h *Handler) sendEvent(conn *SSEConnection, id, event string, data any) error {
	select {
	case <-conn.Done:
		return sse.ErrClosed
	default:
	}
	return conn.Stream.WriteEvent(id, event, data)
}

// removeConnection removes a connection from the map
func (h *Handler) removeConnection(connectionID string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()

	if conn, ok := h.connections[connectionID]; ok {
		select {
		case <-conn.Done:
			// Already closed
		default:
			close(conn.Done)
		}
		conn.Stream.Close()
		delete(h.connections, connectionID)
	}
}

// generateConnectionID creates a unique connection ID
func (h *Handler) generateConnectionID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return fmt.Sprintf("sse_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(bytes)[:12])
}
