package events

import (
	"time"

	"github.com/emergent-company/emergent.graphcore/pkg/sse"
)

// Topic names a stream of graph change notifications.
type Topic string

const (
	TopicEntityUpdated   Topic = "entity.updated"
	TopicEntityDeleted   Topic = "entity.deleted"
	TopicRelationCreated Topic = "relation.created"
	TopicRelationDeleted Topic = "relation.deleted"
)

// ActorType represents the type of actor making a change
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// ActorContext tracks who made the change
type ActorContext struct {
	ActorType ActorType `json:"actorType"`
	ActorID   string    `json:"actorId,omitempty"`
}

// Notification is published after a successful graph mutation.
type Notification struct {
	ID        string         `json:"id"`
	Topic     Topic          `json:"topic"`
	Instance  any            `json:"instance"`
	Actor     *ActorContext  `json:"actor,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// SSEConnection represents an SSE connection
type SSEConnection struct {
	ConnectionID  string
	Topic         Topic
	Stream        *sse.Writer
	Done          chan struct{}
	LastHeartbeat time.Time
}

// ConnectedEvent is sent when a client connects
type ConnectedEvent struct {
	ConnectionID string `json:"connectionId"`
	Topic        Topic  `json:"topic,omitempty"`
}

// HeartbeatEvent is sent periodically to keep connections alive
type HeartbeatEvent struct {
	Timestamp string `json:"timestamp"`
}
