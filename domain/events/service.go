package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// allTopics is the subscription key that receives every notification.
const allTopics Topic = "*"

type subscriber struct {
	id int
	fn func(Notification)
}

// Service fans notifications out to in-process subscribers and, when a
// Redis client is configured, PUBLISHes them on <prefix>:<topic>.
type Service struct {
	log         *slog.Logger
	mu          sync.RWMutex
	subscribers map[Topic][]subscriber
	nextID      int

	redis  backend.UniversalClient
	prefix string
}

// Option configures a Service.
type Option func(*Service)

// WithRedis publishes every notification on Redis as well.
func WithRedis(client backend.UniversalClient, prefix string) Option {
	return func(s *Service) {
		s.redis = client
		s.prefix = prefix
	}
}

// NewService creates an events service.
func NewService(log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		log:         log.With(logger.Scope("events")),
		subscribers: make(map[Topic][]subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for topic; "*" receives every topic. The returned
// function removes the subscription.
func (s *Service) Subscribe(topic Topic, fn func(Notification)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subscribers[topic] = append(s.subscribers[topic], subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[topic]
		for i, sub := range subs {
			if sub.id == id {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(s.subscribers, topic)
		} else {
			s.subscribers[topic] = subs
		}
	}
}

// Publish delivers n on topic. Subscribers run asynchronously; a Redis
// failure is logged and never fails the caller.
func (s *Service) Publish(ctx context.Context, topic Topic, n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.Topic = topic
	if n.Timestamp == "" {
		n.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.RLock()
	targets := make([]subscriber, 0, len(s.subscribers[topic])+len(s.subscribers[allTopics]))
	targets = append(targets, s.subscribers[topic]...)
	if topic != allTopics {
		targets = append(targets, s.subscribers[allTopics]...)
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		go sub.fn(n)
	}

	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.log.Warn("marshal notification failed", slog.String("topic", string(topic)), logger.Error(err))
		return
	}
	if err := s.redis.Publish(ctx, s.prefix+":"+string(topic), payload).Err(); err != nil {
		s.log.Warn("redis publish failed", slog.String("topic", string(topic)), logger.Error(err))
	}
}

// GetSubscriberCount returns the number of subscribers for topic.
func (s *Service) GetSubscriberCount(topic Topic) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[topic])
}

// GetTotalSubscriberCount returns the number of subscribers on all topics.
func (s *Service) GetTotalSubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, subs := range s.subscribers {
		total += len(subs)
	}
	return total
}
